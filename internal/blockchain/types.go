package blockchain

import (
	"encoding/json"
	"strings"
)

type ObjectDataOptions struct {
	ShowType    bool `json:"showType"`
	ShowOwner   bool `json:"showOwner"`
	ShowContent bool `json:"showContent"`
}

// ObjectResponse keeps the object data raw; decoding belongs to the decoder package.
type ObjectResponse struct {
	Data  json.RawMessage `json:"data,omitempty"`
	Error *ObjectError    `json:"error,omitempty"`
}

type ObjectError struct {
	Code     string `json:"code"`
	ObjectID string `json:"object_id,omitempty"`
}

func (e *ObjectError) Error() string {
	if e.ObjectID != "" {
		return "object " + e.ObjectID + ": " + e.Code
	}
	return e.Code
}

type TransactionFilter struct {
	ChangedObject string `json:"ChangedObject,omitempty"`
	FromAddress   string `json:"FromAddress,omitempty"`
}

type TransactionResponseOptions struct {
	ShowInput         bool `json:"showInput"`
	ShowEffects       bool `json:"showEffects"`
	ShowEvents        bool `json:"showEvents"`
	ShowObjectChanges bool `json:"showObjectChanges"`
}

type TransactionQuery struct {
	Filter  *TransactionFilter          `json:"filter,omitempty"`
	Options *TransactionResponseOptions `json:"options,omitempty"`
}

type TransactionPage struct {
	Data        []TransactionResponse `json:"data"`
	NextCursor  *string               `json:"nextCursor"`
	HasNextPage bool                  `json:"hasNextPage"`
}

type TransactionResponse struct {
	Digest        string               `json:"digest"`
	Transaction   *TransactionEnvelope `json:"transaction,omitempty"`
	Effects       *Effects             `json:"effects,omitempty"`
	ObjectChanges []ObjectChange       `json:"objectChanges,omitempty"`
	TimestampMs   string               `json:"timestampMs,omitempty"`
	Errors        []string             `json:"errors,omitempty"`
}

func (r *TransactionResponse) Sender() string {
	if r.Transaction == nil {
		return ""
	}
	return r.Transaction.Data.Sender
}

// Succeeded is false both for failed effects and for responses without effects.
func (r *TransactionResponse) Succeeded() bool {
	return r.Effects != nil && r.Effects.Status.Status == "success"
}

type TransactionEnvelope struct {
	Data struct {
		Sender string `json:"sender"`
	} `json:"data"`
}

type Effects struct {
	Status ExecutionStatus `json:"status"`
}

type ExecutionStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type ObjectChange struct {
	Type       string `json:"type"`
	Sender     string `json:"sender,omitempty"`
	ObjectType string `json:"objectType,omitempty"`
	ObjectID   string `json:"objectId,omitempty"`
	Version    string `json:"version,omitempty"`
	Digest     string `json:"digest,omitempty"`
}

// CreatedObjectOfType returns the first created object whose type ends with suffix.
func CreatedObjectOfType(changes []ObjectChange, suffix string) (string, bool) {
	for _, change := range changes {
		if change.Type == "created" && strings.HasSuffix(change.ObjectType, suffix) {
			return change.ObjectID, true
		}
	}
	return "", false
}
