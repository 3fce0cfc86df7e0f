package schemas

import (
	"regexp"

	z "github.com/Oudwins/zog"
)

type SubmitRequest struct {
	Task          string `json:"task" zog:"task"`
	RepositoryURL string `json:"repositoryUrl" zog:"repositoryUrl"`
	Credential    string `json:"credential,omitempty" zog:"credential"`
	BranchName    string `json:"branchName,omitempty" zog:"branchName"`
	Model         string `json:"model,omitempty" zog:"model"`
	Environment   string `json:"environment,omitempty" zog:"environment"`
}

var branchNameRegex = regexp.MustCompile(`^[A-Za-z0-9._/\-]+$`)
var multipleSlashes = regexp.MustCompile(`//+`)

var SubmitSchema = z.Struct(z.Shape{
	"Task":          z.String().Trim().Required(z.Message("task is required")),
	"RepositoryURL": z.String().Trim().Required(z.Message("repositoryUrl is required")),
	"Credential":    z.String().Optional().Trim(),
	"BranchName":    z.String().Optional().Trim().Match(branchNameRegex, z.Message("branchName has invalid characters")).Not().Match(multipleSlashes),
	"Model":         z.String().Optional().Trim(),
	"Environment":   z.String().Optional().Trim(),
})

type SubmitResponse struct {
	SessionID  string        `json:"sessionId"`
	Status     SessionStatus `json:"status"`
	BranchName string        `json:"branchName"`
}

type StopResponse struct {
	SessionID string        `json:"sessionId"`
	Status    SessionStatus `json:"status"`
	Message   string        `json:"message"`
}

type SessionListResponse struct {
	Sessions []*Session `json:"sessions"`
}
