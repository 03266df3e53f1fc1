package entity

import (
	"fmt"
	"regexp"
)

// hsCodePattern los HS Codes válidos tienen entre 8 y 10 dígitos.
var hsCodePattern = regexp.MustCompile(`^\d{8,10}$`)

// ValidateHSCode verifica el formato de un HS Code (Harmonized System).
func ValidateHSCode(code string) error {
	if !hsCodePattern.MatchString(code) {
		return fmt.Errorf("HS Code %q inválido: debe tener 8-10 dígitos", code)
	}
	return nil
}

// Item producto del catálogo del ERP. HSCode puede estar vacío; en ese caso
// la resolución del ProductCode cae al grupo del producto.
type Item struct {
	Code      string // código único del producto
	Name      string
	GroupName string
	HSCode    string
}

// ItemGroup grupo de productos con HS Code por defecto para sus items.
type ItemGroup struct {
	Name   string
	HSCode string
}
