package fiscal

import (
	"fmt"
	"unicode"
)

// Tipos de tomador que reconoce el emisor.
const (
	BorrowerNaturalPerson = "NaturalPerson" // persona física (CPF, 11 dígitos)
	BorrowerLegalEntity   = "LegalEntity"   // persona jurídica (CNPJ, 14 dígitos)
)

// pesos para los dígitos verificadores del CNPJ (módulo 11).
var (
	cnpjWeightsFirst  = [12]int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	cnpjWeightsSecond = [13]int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

// NormalizeTaxID elimina puntuación y deja solo los dígitos del documento.
// "12.345.678/0001-95" → "12345678000195"; "123.456.789-09" → "12345678909".
func NormalizeTaxID(taxID string) string {
	var out []byte
	for _, r := range taxID {
		if unicode.IsDigit(r) {
			out = append(out, byte(r))
		}
	}
	return string(out)
}

// BorrowerTypeFor infiere el tipo de tomador por la cantidad de dígitos del
// documento: 11 = CPF (persona física), 14 = CNPJ (persona jurídica).
// Documentos malformados caen a persona física, igual que el sistema original.
func BorrowerTypeFor(taxID string) string {
	if len(NormalizeTaxID(taxID)) == 14 {
		return BorrowerLegalEntity
	}
	return BorrowerNaturalPerson
}

// ValidateCPF valida los dos dígitos verificadores del CPF (módulo 11).
// Acepta el documento con o sin puntuación.
func ValidateCPF(taxID string) error {
	digits := NormalizeTaxID(taxID)
	if len(digits) != 11 {
		return fmt.Errorf("fiscal: CPF debe tener 11 dígitos, se encontraron %d", len(digits))
	}
	if allEqual(digits) {
		return fmt.Errorf("fiscal: CPF con todos los dígitos iguales es inválido")
	}
	for _, pos := range []int{9, 10} {
		var sum int
		for i := 0; i < pos; i++ {
			sum += int(digits[i]-'0') * (pos + 1 - i)
		}
		if digits[pos] != mod11Digit(sum) {
			return fmt.Errorf("fiscal: dígito verificador %d del CPF inválido", pos-8)
		}
	}
	return nil
}

// ValidateCNPJ valida los dos dígitos verificadores del CNPJ (módulo 11).
// Acepta el documento con o sin puntuación.
func ValidateCNPJ(taxID string) error {
	digits := NormalizeTaxID(taxID)
	if len(digits) != 14 {
		return fmt.Errorf("fiscal: CNPJ debe tener 14 dígitos, se encontraron %d", len(digits))
	}
	var sum int
	for i, w := range cnpjWeightsFirst {
		sum += int(digits[i]-'0') * w
	}
	if digits[12] != mod11Digit(sum) {
		return fmt.Errorf("fiscal: primer dígito verificador del CNPJ inválido")
	}
	sum = 0
	for i, w := range cnpjWeightsSecond {
		sum += int(digits[i]-'0') * w
	}
	if digits[13] != mod11Digit(sum) {
		return fmt.Errorf("fiscal: segundo dígito verificador del CNPJ inválido")
	}
	return nil
}

// mod11Digit aplica la regla módulo 11: resto < 2 → 0, si no 11 - resto.
func mod11Digit(sum int) byte {
	r := sum % 11
	if r < 2 {
		return '0'
	}
	return byte('0' + 11 - r)
}

func allEqual(s string) bool {
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return true
}
