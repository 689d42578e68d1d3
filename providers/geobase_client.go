package providers

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"alertmtl.app/config"
	apperrors "alertmtl.app/errors"
	"alertmtl.app/models"
)

// GeobaseClient downloads the Montreal street-segment dataset (geobase
// double, one row per side of street) published on the open-data portal.
type GeobaseClient struct {
	csvURL string
	client *http.Client
}

// NewGeobaseClient creates a client for the geobase CSV export
func NewGeobaseClient(config *config.GeobaseConfig) *GeobaseClient {
	return &GeobaseClient{
		csvURL: config.CSVURL,
		client: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
	}
}

// FetchEntries downloads and parses the full dataset. Rows with malformed
// identifiers or civic ranges are skipped rather than failing the import.
func (c *GeobaseClient) FetchEntries() ([]models.GeobaseEntry, error) {
	resp, err := c.client.Get(c.csvURL)
	if err != nil {
		return nil, apperrors.NewExternalAPIError("failed to download geobase dataset", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewExternalAPIError(
			fmt.Sprintf("geobase download returned status code %d", resp.StatusCode), nil)
	}

	return c.parseCSV(resp.Body)
}

func (c *GeobaseClient) parseCSV(r io.Reader) ([]models.GeobaseEntry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, apperrors.NewExternalAPIError("failed to read geobase header", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		// the export carries a BOM on the first header cell
		name = strings.TrimPrefix(strings.TrimSpace(name), "﻿")
		columns[strings.ToUpper(name)] = i
	}

	for _, required := range []string{"COTE_RUE_ID", "NOM_VOIE", "DEBUT_ADRESSE", "FIN_ADRESSE", "COTE"} {
		if _, found := columns[required]; !found {
			return nil, apperrors.NewExternalAPIError(
				fmt.Sprintf("geobase csv missing column %s", required), nil)
		}
	}

	var entries []models.GeobaseEntry
	skipped := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}

		coteRueID, err := strconv.Atoi(field(record, columns, "COTE_RUE_ID"))
		if err != nil || coteRueID <= 0 {
			skipped++
			continue
		}

		streetName := strings.TrimSpace(field(record, columns, "NOM_VOIE"))
		if streetName == "" {
			skipped++
			continue
		}

		fromCivic, err1 := strconv.Atoi(field(record, columns, "DEBUT_ADRESSE"))
		toCivic, err2 := strconv.Atoi(field(record, columns, "FIN_ADRESSE"))
		if err1 != nil || err2 != nil {
			skipped++
			continue
		}

		entries = append(entries, models.GeobaseEntry{
			CoteRueID:  coteRueID,
			StreetName: streetName,
			StreetType: strings.TrimSpace(field(record, columns, "TYPE_F")),
			FromCivic:  fromCivic,
			ToCivic:    toCivic,
			Side:       strings.TrimSpace(field(record, columns, "COTE")),
			Borough:    strings.TrimSpace(field(record, columns, "NOM_VILLE")),
		})
	}

	slog.Info("geobase dataset parsed", "entries", len(entries), "skipped", skipped)
	return entries, nil
}

func field(record []string, columns map[string]int, name string) string {
	idx, found := columns[name]
	if !found || idx >= len(record) {
		return ""
	}
	return record[idx]
}
