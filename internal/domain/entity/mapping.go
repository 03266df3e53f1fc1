package entity

// TaxMapping mapea una plantilla de impuestos del ERP a un impuesto de la
// plataforma fiscal. Exactamente una debe ser la default.
type TaxMapping struct {
	ID               string
	TaxCode          string // plantilla de impuestos del ERP
	DestinationTaxID string // id del impuesto en Fiscal Harmony
	IsDefault        bool
	RemoteID         int // id asignado por la plataforma; 0 si aún no se sincroniza
}

// CurrencyMapping mapea una moneda del ERP a una moneda de la plataforma fiscal.
type CurrencyMapping struct {
	ID              string
	SystemCurrency  string
	TargetCurrency  string
	RemoteID        int
}
