// seed_ibge genera el script SQL para poblar el catálogo de municipios con sus
// códigos IBGE a partir del XML oficial Municipios.xml (DTB/IBGE).
//
// Uso: go run ./cmd/seed_ibge [ruta/Municipios.xml]
// Por defecto busca Municipios.xml en el directorio actual.
// Escribe: internal/infrastructure/postgres/migrations/002_seed_municipalities.sql
package main

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

type municipios struct {
	Municipios []municipio `xml:"municipio"`
}

type municipio struct {
	Codigo string `xml:"codigo,attr"` // código IBGE de 7 dígitos
	Nombre string `xml:"nome,attr"`
	UF     string `xml:"uf,attr"`
}

func main() {
	xmlPath := "Municipios.xml"
	if len(os.Args) > 1 {
		xmlPath = os.Args[1]
	}
	f, err := os.Open(xmlPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Abrir XML: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	var doc municipios
	dec := xml.NewDecoder(f)
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		if strings.EqualFold(charset, "ISO-8859-1") || strings.EqualFold(charset, "ISO8859-1") {
			return transform.NewReader(input, charmap.ISO8859_1.NewDecoder()), nil
		}
		return input, nil
	}
	if err := dec.Decode(&doc); err != nil {
		fmt.Fprintf(os.Stderr, "Decodificar XML: %v\n", err)
		os.Exit(1)
	}

	var rows []municipio
	for _, m := range doc.Municipios {
		code := strings.TrimSpace(m.Codigo)
		name := strings.TrimSpace(m.Nombre)
		uf := strings.ToUpper(strings.TrimSpace(m.UF))
		if code == "" || name == "" || uf == "" {
			continue
		}
		rows = append(rows, municipio{Codigo: code, Nombre: name, UF: uf})
	}

	// Ordenar por código IBGE para salida estable
	sort.Slice(rows, func(i, j int) bool { return rows[i].Codigo < rows[j].Codigo })

	moduleRoot := findModuleRoot()
	outPath := filepath.Join(moduleRoot, "internal", "infrastructure", "postgres", "migrations", "002_seed_municipalities.sql")
	out, err := os.Create(outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Crear archivo: %v\n", err)
		os.Exit(1)
	}
	defer out.Close()

	out.WriteString("-- Municipios Brasil (código IBGE)\n")
	out.WriteString("-- Generado desde Municipios.xml (DTB/IBGE)\n\n")

	out.WriteString("INSERT INTO municipalities (ibge_code, name, state) VALUES\n")
	for i, m := range rows {
		sep := ","
		if i == len(rows)-1 {
			sep = ""
		}
		fmt.Fprintf(out, "  ('%s', '%s', '%s')%s\n", m.Codigo, escapeSQL(m.Nombre), m.UF, sep)
	}
	out.WriteString("ON CONFLICT (ibge_code) DO UPDATE SET name = EXCLUDED.name, state = EXCLUDED.state;\n")

	fmt.Printf("Generado %s: %d municipios\n", outPath, len(rows))
}

func escapeSQL(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func findModuleRoot() string {
	dir, _ := os.Getwd()
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}
