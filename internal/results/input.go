package results

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// accountHeaders son los nombres de columna aceptados en la primera
// línea de un CSV de entrada
var accountHeaders = map[string]bool{
	"username": true,
	"account":  true,
	"user":     true,
}

// ParseAccounts lee una lista de cuentas objetivo desde un archivo.
// Acepta CSV con encabezado (columna username/account/user, se usa la
// primera columna) o texto plano con un username por línea. Normaliza
// quitando el @ inicial y descartando líneas en blanco.
func ParseAccounts(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open accounts file: %w", err)
	}
	defer f.Close()

	var accounts []string
	scanner := bufio.NewScanner(f)
	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		// Solo la primera columna importa en archivos CSV
		if idx := strings.IndexByte(line, ','); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}

		if first {
			first = false
			if accountHeaders[strings.ToLower(line)] {
				continue
			}
		}

		username := strings.Trim(line, `"`)
		username = strings.TrimPrefix(username, "@")
		if username == "" {
			continue
		}
		accounts = append(accounts, username)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read accounts file: %w", err)
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("no accounts found in %s", path)
	}
	return accounts, nil
}
