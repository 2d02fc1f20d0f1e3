package backend

import "time"

// BrandRef is the brand summary embedded in a collection.
type BrandRef struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	LogoURL string `json:"logoUrl,omitempty"`
}

// Collection is a watch listed in the store.
type Collection struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	ReferenceCode   string    `json:"referenceCode"`
	Description     string    `json:"description"`
	PriceInCents    int64     `json:"priceInCents"`
	StockQuantity   int       `json:"stockQuantity"`
	IsAvailable     bool      `json:"isAvailable"`
	PrimaryPhotoURL string    `json:"primaryPhotoUrl,omitempty"`
	Brand           *BrandRef `json:"brand,omitempty"`
}

// BrandName is empty when the collection has no brand.
func (c Collection) BrandName() string {
	if c.Brand == nil {
		return ""
	}
	return c.Brand.Name
}

// CollectionQuery filters the listing endpoint.
type CollectionQuery struct {
	Search  string
	BrandID string
	Page    int
	Limit   int
}

// CollectionPage is one page of the listing endpoint.
type CollectionPage struct {
	Items []Collection `json:"items"`
	Total int          `json:"total"`
	Page  int          `json:"page"`
	Limit int          `json:"limit"`
}

// BookingItem is one purchased cart line.
type BookingItem struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unitPriceCents"`
	Quantity       int    `json:"quantity"`
	ImageURL       string `json:"imageUrl,omitempty"`
	BrandName      string `json:"brandName,omitempty"`
}

// BookingRequest is the body of POST /api/v1/bookings.
type BookingRequest struct {
	CustomerWalletAddress string        `json:"customerWalletAddress"`
	WatchItems            []BookingItem `json:"watchItems"`
	Discount              float64       `json:"discount"`
	USDValue              float64       `json:"usdValue"`
	ShipmentAddress       string        `json:"shipmentAddress"`
	SenderWallet          string        `json:"senderWallet"`
	ReceiverWallet        string        `json:"receiverWallet"`
	PaymentType           string        `json:"paymentType"`
	TransactionHash       string        `json:"transactionHash"`
	PaymentStatus         string        `json:"paymentStatus"`
}

// Booking is the backend record created for a paid order.
type Booking struct {
	ID                    string        `json:"id"`
	CustomerWalletAddress string        `json:"customerWalletAddress,omitempty"`
	WatchItems            []BookingItem `json:"watchItems,omitempty"`
	USDValue              float64       `json:"usdValue"`
	ShipmentAddress       string        `json:"shipmentAddress,omitempty"`
	PaymentType           string        `json:"paymentType,omitempty"`
	TransactionHash       string        `json:"transactionHash,omitempty"`
	PaymentStatus         string        `json:"paymentStatus,omitempty"`
	CreatedAt             *time.Time    `json:"createdAt,omitempty"`
}

// VerifyRequest is the body of POST /api/v1/bookings/verify.
type VerifyRequest struct {
	TransactionHash string `json:"transactionHash"`
	BookingID       string `json:"bookingId,omitempty"`
}

// VerifyResult reports whether the backend matched the payment on chain.
type VerifyResult struct {
	Verified bool   `json:"verified"`
	Status   string `json:"status,omitempty"`
	Message  string `json:"message,omitempty"`
}

// BookingQuery filters the admin bookings listing.
type BookingQuery struct {
	Status string
	Page   int
	Limit  int
}

// BookingPage is one page of bookings.
type BookingPage struct {
	Items []Booking `json:"items"`
	Total int       `json:"total"`
	Page  int       `json:"page"`
	Limit int       `json:"limit"`
}
