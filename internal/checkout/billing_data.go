package checkout

import "strings"

// Field names a billing input.
type Field string

const (
	FieldName        Field = "name"
	FieldPhone       Field = "phone"
	FieldCountryCode Field = "countryCode"
	FieldAddress     Field = "address"
	FieldCity        Field = "city"
)

// BillingFields lists the inputs in form order.
func BillingFields() []Field {
	return []Field{FieldName, FieldPhone, FieldCountryCode, FieldAddress, FieldCity}
}

func ParseField(value string) (Field, bool) {
	for _, f := range BillingFields() {
		if string(f) == strings.TrimSpace(value) {
			return f, true
		}
	}
	return "", false
}

// Label is the human name used in "is required" messages.
func (f Field) Label() string {
	switch f {
	case FieldName:
		return "Name"
	case FieldPhone:
		return "Phone"
	case FieldCountryCode:
		return "Country"
	case FieldAddress:
		return "Address"
	case FieldCity:
		return "City"
	default:
		return string(f)
	}
}

// BillingData is the shipping and contact data collected in step 1.
type BillingData struct {
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	CountryCode string `json:"countryCode"`
	Address     string `json:"address"`
	City        string `json:"city"`
}

func (b BillingData) Get(f Field) string {
	switch f {
	case FieldName:
		return b.Name
	case FieldPhone:
		return b.Phone
	case FieldCountryCode:
		return b.CountryCode
	case FieldAddress:
		return b.Address
	case FieldCity:
		return b.City
	default:
		return ""
	}
}

func (b *BillingData) set(f Field, value string) bool {
	switch f {
	case FieldName:
		b.Name = value
	case FieldPhone:
		b.Phone = value
	case FieldCountryCode:
		b.CountryCode = value
	case FieldAddress:
		b.Address = value
	case FieldCity:
		b.City = value
	default:
		return false
	}
	return true
}

// Missing returns the fields that are empty after trimming, in form order.
func (b BillingData) Missing() []Field {
	var missing []Field
	for _, f := range BillingFields() {
		if strings.TrimSpace(b.Get(f)) == "" {
			missing = append(missing, f)
		}
	}
	return missing
}

func (b BillingData) Complete() bool {
	return len(b.Missing()) == 0
}

// ShipmentAddress renders "address, city, country" for the booking record.
func (b BillingData) ShipmentAddress() string {
	parts := []string{strings.TrimSpace(b.Address), strings.TrimSpace(b.City), strings.TrimSpace(b.CountryCode)}
	return strings.Join(parts, ", ")
}
