package models

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccount_Email(t *testing.T) {
	account := &Account{ID: uuid.New(), Username: "jdoe", Active: true}
	assert.Equal(t, "", account.Email())

	account.Profile = &Profile{UserID: account.ID, Email: "jdoe@example.com"}
	assert.Equal(t, "jdoe@example.com", account.Email())
}

func TestAccount_JSONOmitsMissingProfile(t *testing.T) {
	data, err := json.Marshal(&Account{ID: uuid.New(), Username: "jdoe", Active: true})
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "jdoe", decoded["username"])
	assert.Equal(t, true, decoded["active"])
	assert.NotContains(t, decoded, "profile")
}

func TestAccount_JSONIncludesProfile(t *testing.T) {
	id := uuid.New()
	account := &Account{
		ID:       id,
		Username: "jdoe",
		Profile:  &Profile{UserID: id, Email: "jdoe@example.com", FullName: "J. Doe"},
	}

	data, err := json.Marshal(account)
	require.NoError(t, err)

	var decoded struct {
		Profile Profile `json:"profile"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, id, decoded.Profile.UserID)
	assert.Equal(t, "jdoe@example.com", decoded.Profile.Email)
}
