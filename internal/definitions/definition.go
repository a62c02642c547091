package definitions

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/angeloszaimis/uptime-tracker/internal/service"
)

// Definition is one row of the services table.
type Definition struct {
	Name             string       `gorm:"column:name;primaryKey" json:"name"`
	Address          string       `gorm:"column:address;not null" json:"address"`
	External         bool         `gorm:"column:external;not null" json:"external"`
	Backend          *string      `gorm:"column:backend" json:"backend,omitempty"`
	DisplayAddress   *string      `gorm:"column:display_address" json:"displayAddress,omitempty"`
	TrustCertificate bool         `gorm:"column:trust_certificate;not null" json:"trustCertificate"`
	CheckType        service.Kind `gorm:"column:check_type;type:bigint;not null" json:"checkType"`
	ConfigHash       string       `gorm:"column:config_hash;index" json:"-"`
}

func (Definition) TableName() string {
	return "services"
}

func (d Definition) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Name, validation.Required, validation.Length(1, 255)),
		validation.Field(&d.Address, validation.Required),
		validation.Field(&d.CheckType, validation.By(func(value interface{}) error {
			kind, ok := value.(service.Kind)
			if !ok || !kind.Valid() {
				return validation.NewError("validation_invalid_check_type", "must be HTTP(0), TCP(1), PING(2) or SSL(3)")
			}
			return nil
		})),
	)
}

// Record converts d into a fresh untested record.
func (d Definition) Record() service.Record {
	rec := service.Record{
		Name:      d.Name,
		Address:   d.Address,
		External:  d.External,
		TrustCert: d.TrustCertificate,
		Kind:      d.CheckType,
	}
	if d.Backend != nil {
		rec.Backend = *d.Backend
	}
	if d.DisplayAddress != nil {
		rec.DisplayAddress = *d.DisplayAddress
	}
	return rec.Untested()
}
