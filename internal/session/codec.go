package session

import (
	"encoding/json"
	"fmt"

	"ereader/internal/sentinel"
)

// Record is the persisted shape shared by the file and redis backends: the
// bearer token and the user serialized as a JSON string under two keys.
type Record struct {
	AuthToken string `json:"auth_token,omitempty"`
	UserData  string `json:"user_data,omitempty"`
}

// EncodeRecord validates s and converts it to a Record.
func EncodeRecord(s Session) (Record, error) {
	if err := s.Validate(); err != nil {
		return Record{}, err
	}
	user, err := json.Marshal(s.User)
	if err != nil {
		return Record{}, fmt.Errorf("marshal user: %w", err)
	}
	return Record{AuthToken: s.Token, UserData: string(user)}, nil
}

// Decode converts r back into a Session. An empty record yields (nil, nil).
// A record whose user cannot be decoded, or which holds only one of the two
// fields, yields an error wrapping sentinel.ErrCorrupt.
func (r Record) Decode() (*Session, error) {
	if r.AuthToken == "" && r.UserData == "" {
		return nil, nil
	}
	if r.AuthToken == "" || r.UserData == "" {
		return nil, fmt.Errorf("partial session record: %w", sentinel.ErrCorrupt)
	}
	var user User
	if err := json.Unmarshal([]byte(r.UserData), &user); err != nil {
		return nil, fmt.Errorf("decode user record: %w: %w", sentinel.ErrCorrupt, err)
	}
	s := &Session{Token: r.AuthToken, User: user}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session record: %w: %w", sentinel.ErrCorrupt, err)
	}
	return s, nil
}
