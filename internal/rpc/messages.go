package rpc

import "google.golang.org/protobuf/types/known/structpb"

type Credentials struct {
	Email    string
	Password string
	Name     string
}

func (c Credentials) Struct() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"email":    structpb.NewStringValue(c.Email),
		"password": structpb.NewStringValue(c.Password),
		"name":     structpb.NewStringValue(c.Name),
	}}
}

func CredentialsFrom(s *structpb.Struct) Credentials {
	return Credentials{
		Email:    String(s, "email"),
		Password: String(s, "password"),
		Name:     String(s, "name"),
	}
}

// Profile is the public projection of an account.
type Profile struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Handle    string `json:"handle"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl"`
}

func (p Profile) Struct() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"id":        structpb.NewStringValue(p.ID),
		"email":     structpb.NewStringValue(p.Email),
		"handle":    structpb.NewStringValue(p.Handle),
		"name":      structpb.NewStringValue(p.Name),
		"avatarUrl": structpb.NewStringValue(p.AvatarURL),
	}}
}

func ProfileFrom(s *structpb.Struct) Profile {
	return Profile{
		ID:        String(s, "id"),
		Email:     String(s, "email"),
		Handle:    String(s, "handle"),
		Name:      String(s, "name"),
		AvatarURL: String(s, "avatarUrl"),
	}
}

// AuthReply answers Login and Register. Token is empty when
// ConfirmationRequired is set.
type AuthReply struct {
	Token                string
	User                 Profile
	ConfirmationRequired bool
}

func (r AuthReply) Struct() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"token":                structpb.NewStringValue(r.Token),
		"user":                 structpb.NewStructValue(r.User.Struct()),
		"confirmationRequired": structpb.NewBoolValue(r.ConfirmationRequired),
	}}
}

func AuthReplyFrom(s *structpb.Struct) AuthReply {
	return AuthReply{
		Token:                String(s, "token"),
		User:                 ProfileFrom(s.GetFields()["user"].GetStructValue()),
		ConfirmationRequired: Bool(s, "confirmationRequired"),
	}
}

type ConfirmRequest struct {
	Token string
}

func (r ConfirmRequest) Struct() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"token": structpb.NewStringValue(r.Token),
	}}
}

func ConfirmRequestFrom(s *structpb.Struct) ConfirmRequest {
	return ConfirmRequest{Token: String(s, "token")}
}

// String reads a string field; missing fields and nil structs read as "".
func String(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

func Bool(s *structpb.Struct, key string) bool {
	return s.GetFields()[key].GetBoolValue()
}
