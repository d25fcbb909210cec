package txbuilder

import (
	"encoding/json"

	"github.com/pkg/errors"
)

type Kind string

const (
	KindCreateCampaign Kind = "create-campaign"
	KindSubmitResponse Kind = "submit-response"
)

type ArgumentKind string

const (
	ArgumentObject ArgumentKind = "object"
	ArgumentPure   ArgumentKind = "pure"
)

// Argument is one input of a move call. Pure arguments carry their BCS bytes
// next to the readable value so the sponsor can rebuild the call exactly.
type Argument struct {
	Name     string       `json:"name"`
	Kind     ArgumentKind `json:"kind"`
	ObjectID string       `json:"objectId,omitempty"`
	Mutable  bool         `json:"mutable,omitempty"`
	Type     string       `json:"type,omitempty"`
	Value    any          `json:"value,omitempty"`
	BCS      []byte       `json:"bcs,omitempty"`
}

// Transaction describes a single move call. It is neither signed nor gas-paid.
type Transaction struct {
	Version   int        `json:"version"`
	Kind      Kind       `json:"kind"`
	Target    string     `json:"target"`
	Arguments []Argument `json:"arguments"`
	GasBudget uint64     `json:"gasBudget,omitempty"`
	Sender    string     `json:"sender,omitempty"`
}

func (t *Transaction) Argument(name string) (Argument, bool) {
	for _, arg := range t.Arguments {
		if arg.Name == name {
			return arg, true
		}
	}
	return Argument{}, false
}

// Serialize produces the txSerialized payload handed to the sponsor service.
func (t *Transaction) Serialize() ([]byte, error) {
	raw, err := json.Marshal(t)
	if err != nil {
		return nil, errors.Wrap(err, "serialize transaction")
	}
	return raw, nil
}

func objectArg(name, id string, mutable bool) Argument {
	return Argument{Name: name, Kind: ArgumentObject, ObjectID: id, Mutable: mutable}
}

func pureArg(name, typ string, value any, encoded []byte) Argument {
	return Argument{Name: name, Kind: ArgumentPure, Type: typ, Value: value, BCS: encoded}
}
