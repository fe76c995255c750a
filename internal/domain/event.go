package domain

// Attribute is a key/value pair describing an operation result.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// SaleEvent is the audit record of one committed operation.
type SaleEvent struct {
	EventID   string      // deterministic hash
	Sequence  uint64      // position in the contract's operation log
	Action    string      // e.g. "buy", "claim_tokens"
	Sender    string      // caller account
	Timestamp int64       // host time in unix seconds
	Status    SaleStatus  // status after the operation
	Attrs     []Attribute // ordered result attributes
	Messages  []Message   // emitted transfers
}

// Attr returns the value of the first attribute named key.
func (e *SaleEvent) Attr(key string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}
