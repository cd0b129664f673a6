package contract

// Key is a semantic contract value, independent of template field names.
type Key string

const (
	KeyLegalName     Key = "legal-name"
	KeyIDNumber      Key = "id-number"
	KeyStreet        Key = "street"
	KeyPostalCode    Key = "postal-code"
	KeyCity          Key = "city"
	KeyProvince      Key = "province"
	KeySignatureDate Key = "signature-date"
	KeyBirthDate     Key = "birth-date"
	KeyNationality   Key = "nationality"
)

// Keys lists every key in fill order.
var Keys = []Key{
	KeyLegalName,
	KeyIDNumber,
	KeyStreet,
	KeyPostalCode,
	KeyCity,
	KeyProvince,
	KeySignatureDate,
	KeyBirthDate,
	KeyNationality,
}

// Default template field names.
const (
	DefaultSignatureBox = "signature_box"
	DefaultDataBox      = "data_box"
)

// DefaultFieldNames returns the stock key to field name mapping.
func DefaultFieldNames() map[Key]string {
	return map[Key]string{
		KeyLegalName:     "nombre",
		KeyIDNumber:      "dni",
		KeyStreet:        "domicilio",
		KeyPostalCode:    "codigo_postal",
		KeyCity:          "localidad",
		KeyProvince:      "provincia",
		KeySignatureDate: "fecha_firma",
		KeyBirthDate:     "fecha_nacimiento",
		KeyNationality:   "nacionalidad",
	}
}

// Fields are the values written into a contract. Only LegalName is required.
type Fields struct {
	LegalName     string `json:"legalName" yaml:"legal-name"`
	IDNumber      string `json:"idNumber,omitempty" yaml:"id-number,omitempty"`
	Street        string `json:"street,omitempty" yaml:"street,omitempty"`
	PostalCode    string `json:"postalCode,omitempty" yaml:"postal-code,omitempty"`
	City          string `json:"city,omitempty" yaml:"city,omitempty"`
	Province      string `json:"province,omitempty" yaml:"province,omitempty"`
	SignatureDate string `json:"signatureDate,omitempty" yaml:"signature-date,omitempty"`
	BirthDate     string `json:"birthDate,omitempty" yaml:"birth-date,omitempty"`
	Nationality   string `json:"nationality,omitempty" yaml:"nationality,omitempty"`
}

// Get returns the value for key.
func (f Fields) Get(key Key) string {
	switch key {
	case KeyLegalName:
		return f.LegalName
	case KeyIDNumber:
		return f.IDNumber
	case KeyStreet:
		return f.Street
	case KeyPostalCode:
		return f.PostalCode
	case KeyCity:
		return f.City
	case KeyProvince:
		return f.Province
	case KeySignatureDate:
		return f.SignatureDate
	case KeyBirthDate:
		return f.BirthDate
	case KeyNationality:
		return f.Nationality
	}
	return ""
}

// Set stores value under key. It reports false for unknown keys.
func (f *Fields) Set(key Key, value string) bool {
	switch key {
	case KeyLegalName:
		f.LegalName = value
	case KeyIDNumber:
		f.IDNumber = value
	case KeyStreet:
		f.Street = value
	case KeyPostalCode:
		f.PostalCode = value
	case KeyCity:
		f.City = value
	case KeyProvince:
		f.Province = value
	case KeySignatureDate:
		f.SignatureDate = value
	case KeyBirthDate:
		f.BirthDate = value
	case KeyNationality:
		f.Nationality = value
	default:
		return false
	}
	return true
}
