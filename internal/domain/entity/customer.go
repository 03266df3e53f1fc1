package entity

import "time"

// Tipos de cliente.
const (
	CustomerTypeIndividual = "Individual"
	CustomerTypeCompany    = "Company"
)

// Customer representa un cliente del ERP (facturación).
type Customer struct {
	ID        string
	Name      string
	Type      string // Individual | Company
	TinNumber string // número de identificación tributaria
	TaxID     string // número de IVA, si es distinto del TIN
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Contact persona de contacto vinculada a la factura.
type Contact struct {
	ID         string
	CustomerID string
	Phone      string
	Email      string
}

// Address dirección de facturación vinculada a la factura.
type Address struct {
	ID           string
	CustomerID   string
	AddressLine1 string
	AddressLine2 string
	City         string
	Country      string
}
