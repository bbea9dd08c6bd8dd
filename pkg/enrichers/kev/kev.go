// Package kev enriches threat analysis with the CISA Known Exploited
// Vulnerabilities catalog. Findings whose weakness class shows up in
// the catalog are being exploited in the wild right now, so their
// likelihood is floored accordingly.
// Data source: https://www.cisa.gov/known-exploited-vulnerabilities-catalog
package kev

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultCatalogURL is the official CISA KEV catalog endpoint.
	DefaultCatalogURL = "https://www.cisa.gov/sites/default/files/feeds/known_exploited_vulnerabilities.json"

	// DefaultCacheTTL is how long a fetched catalog stays fresh.
	DefaultCacheTTL = 6 * time.Hour

	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 60 * time.Second
)

// entry is one catalog record. Only the fields the enrichment needs
// are decoded.
type entry struct {
	CVEID           string   `json:"cveID"`
	CWEs            []string `json:"cwes"`
	KnownRansomware string   `json:"knownRansomwareCampaignUse"`
}

// catalogDocument is the CISA feed envelope.
type catalogDocument struct {
	CatalogVersion  string  `json:"catalogVersion"`
	Count           int     `json:"count"`
	Vulnerabilities []entry `json:"vulnerabilities"`
}

// Catalog caches the KEV feed and answers whether a weakness class is
// under active exploitation.
type Catalog struct {
	mu sync.RWMutex

	// URL of the catalog feed. Default the CISA endpoint.
	URL string

	// CacheTTL is how long a fetched catalog stays fresh.
	CacheTTL time.Duration

	client *http.Client

	// byCWE counts catalog entries per normalized CWE ID.
	byCWE    map[string]int
	version  string
	count    int
	loadedAt time.Time
}

// NewCatalog creates a KEV catalog client with default settings.
func NewCatalog() *Catalog {
	return &Catalog{
		URL:      DefaultCatalogURL,
		CacheTTL: DefaultCacheTTL,
		client:   &http.Client{Timeout: DefaultTimeout},
		byCWE:    make(map[string]int),
	}
}

// ActivelyExploited reports whether the CWE appears in the catalog,
// with the number of catalog entries carrying it.
func (c *Catalog) ActivelyExploited(ctx context.Context, cwe string) (bool, int, error) {
	if err := c.ensureLoaded(ctx); err != nil {
		return false, 0, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	n := c.byCWE[normalizeCWE(cwe)]
	return n > 0, n, nil
}

// Version returns the loaded catalog version and entry count.
func (c *Catalog) Version(ctx context.Context) (string, int, error) {
	if err := c.ensureLoaded(ctx); err != nil {
		return "", 0, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version, c.count, nil
}

func (c *Catalog) ensureLoaded(ctx context.Context) error {
	c.mu.RLock()
	fresh := len(c.byCWE) > 0 && time.Since(c.loadedAt) < c.CacheTTL
	c.mu.RUnlock()
	if fresh {
		return nil
	}
	return c.refresh(ctx)
}

func (c *Catalog) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("kev feed returned status %d", resp.StatusCode)
	}

	var doc catalogDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return err
	}

	byCWE := make(map[string]int)
	for _, e := range doc.Vulnerabilities {
		for _, cwe := range e.CWEs {
			byCWE[normalizeCWE(cwe)]++
		}
	}

	c.mu.Lock()
	c.byCWE = byCWE
	c.version = doc.CatalogVersion
	c.count = doc.Count
	c.loadedAt = time.Now()
	c.mu.Unlock()
	return nil
}

// normalizeCWE maps "cwe-089" and "CWE-89" onto the same key.
func normalizeCWE(cwe string) string {
	cwe = strings.ToUpper(strings.TrimSpace(cwe))
	id := strings.TrimPrefix(cwe, "CWE-")
	id = strings.TrimLeft(id, "0")
	if id == "" {
		return ""
	}
	return "CWE-" + id
}
