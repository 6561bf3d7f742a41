package models

// User is the identity record owned by the credential store. Email doubles
// as the login handle and is stored lowercased. TOTPSecret is empty until
// enrollment starts and is encrypted at rest.
type User struct {
	BaseModel
	Email        string  `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string  `json:"-" gorm:"type:text;not null"`
	FirstName    string  `json:"firstName" gorm:"type:varchar(100);not null"`
	LastName     string  `json:"lastName" gorm:"type:varchar(100);not null"`
	Phone        *string `json:"phone,omitempty" gorm:"type:varchar(30)"`
	MFAEnabled   bool    `json:"mfaEnabled" gorm:"default:false"`
	TOTPSecret   string  `json:"-" gorm:"type:text"`
}
