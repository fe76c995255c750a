package domain

import "github.com/shopspring/decimal"

// MessageKind identifies the kind of outgoing transfer instruction.
type MessageKind string

const (
	// MessageTokenTransfer moves distributed tokens through the token service.
	MessageTokenTransfer MessageKind = "TOKEN_TRANSFER"
	// MessageBankSend moves native coins held by the contract.
	MessageBankSend MessageKind = "BANK_SEND"
)

// Message is an outgoing transfer instruction emitted by an operation.
// The host executes it after the operation succeeds, before commit.
type Message struct {
	Kind      MessageKind     `json:"kind"`
	Contract  string          `json:"contract,omitempty"` // token contract for TOKEN_TRANSFER
	Recipient string          `json:"recipient"`
	Amount    decimal.Decimal `json:"amount,omitempty"` // TOKEN_TRANSFER
	Coins     []Coin          `json:"coins,omitempty"`  // BANK_SEND
}

// TokenTransfer builds a TOKEN_TRANSFER message.
func TokenTransfer(contract, recipient string, amount decimal.Decimal) Message {
	return Message{
		Kind:      MessageTokenTransfer,
		Contract:  contract,
		Recipient: recipient,
		Amount:    amount,
	}
}

// BankSend builds a BANK_SEND message.
func BankSend(recipient string, coins []Coin) Message {
	return Message{
		Kind:      MessageBankSend,
		Recipient: recipient,
		Coins:     CopyCoins(coins),
	}
}
