package domain

import (
	"fmt"
	"time"
)

// Triple is the ordered bit-triple that identifies a coin.
// A valid triple satisfies 1 <= B1 < B2 < B3 <= maxBit.
type Triple struct {
	B1 int `json:"bit1"`
	B2 int `json:"bit2"`
	B3 int `json:"bit3"`
}

// Valid reports whether t is strictly increasing within [1, maxBit].
func (t Triple) Valid(maxBit int) bool {
	return t.B1 >= 1 && t.B1 < t.B2 && t.B2 < t.B3 && t.B3 <= maxBit
}

func (t Triple) String() string {
	return fmt.Sprintf("%d-%d-%d", t.B1, t.B2, t.B3)
}

// Client is a marketplace participant. Credential material is owned by the
// auth collaborator and never leaves storage.
type Client struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// Coin is a minted asset. OwnerID is nil while the coin is on the market.
type Coin struct {
	ID      int64  `json:"id"`
	Bits    Triple `json:"bits"`
	Value   int64  `json:"value"`
	OwnerID *int64 `json:"owner_id"`
}

// Transaction is the immutable ledger record of a purchase.
type Transaction struct {
	ID         int64     `json:"id"`
	CoinID     int64     `json:"coin_id"`
	Amount     int64     `json:"amount"`
	OccurredAt time.Time `json:"transaction_date"`
	SellerID   *int64    `json:"seller_id"`
	BuyerID    int64     `json:"buyer_id"`
}

// CoinRow is a coin joined with its owner's name and its display identifier.
type CoinRow struct {
	ID                 int64   `json:"id"`
	Bit1               int     `json:"bit1"`
	Bit2               int     `json:"bit2"`
	Bit3               int     `json:"bit3"`
	Value              int64   `json:"value"`
	OwnerID            *int64  `json:"owner_id"`
	OwnerName          *string `json:"owner_name"`
	ComputedIdentifier string  `json:"computedIdentifier"`
}

// Bits returns the row's triple.
func (r CoinRow) Bits() Triple {
	return Triple{B1: r.Bit1, B2: r.Bit2, B3: r.Bit3}
}

// TransactionRow is a ledger entry joined with buyer, seller and coin.
type TransactionRow struct {
	ID                 int64     `json:"id"`
	CoinID             int64     `json:"coin_id"`
	Amount             int64     `json:"amount"`
	TransactionDate    time.Time `json:"transaction_date"`
	SellerID           *int64    `json:"seller_id"`
	SellerName         *string   `json:"seller_name"`
	BuyerID            int64     `json:"buyer_id"`
	BuyerName          string    `json:"buyer_name"`
	Bit1               int       `json:"bit1"`
	Bit2               int       `json:"bit2"`
	Bit3               int       `json:"bit3"`
	Value              int64     `json:"value"`
	ComputedIdentifier string    `json:"computedIdentifier"`
}

// Bits returns the triple of the traded coin.
func (r TransactionRow) Bits() Triple {
	return Triple{B1: r.Bit1, B2: r.Bit2, B3: r.Bit3}
}

// ClientProfile summarises a client's holdings and ledger activity.
type ClientProfile struct {
	Name              string `json:"name"`
	Email             string `json:"email"`
	Phone             string `json:"phone"`
	Address           string `json:"address"`
	TransactionsCount int64  `json:"transactionsCount"`
	TotalCoins        int64  `json:"totalCoins"`
	TotalValue        int64  `json:"totalValue"`
}

// CoinPage is the response of a coin listing.
type CoinPage struct {
	Coins                    []CoinRow `json:"coins"`
	TotalCount               int64     `json:"totalCount"`
	HasAvailableCombinations bool      `json:"hasAvailableCombinations"`
}

// TransactionPage is the response of a transaction listing.
type TransactionPage struct {
	Transactions []TransactionRow `json:"transactions"`
	TotalCount   int64            `json:"totalCount"`
}

// MintRequest is the DTO for minting a coin.
type MintRequest struct {
	IssuerID int64 `json:"issuerId"`
	Value    int64 `json:"value"`
}

// BuyRequest is the DTO for purchasing a coin.
type BuyRequest struct {
	CoinID  int64 `json:"coinId"`
	BuyerID int64 `json:"buyerId"`
}
