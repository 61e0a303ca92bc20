// package formatter renders resolved pools and resolution records as JSON, CSV or plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/desertthunder/trackpool/internal/models"
	"github.com/desertthunder/trackpool/internal/shared"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatText = "txt"
)

// Formats lists the accepted format names.
var Formats = []string{FormatJSON, FormatCSV, FormatText}

// PoolToJSON renders the pool as an indented JSON array. An empty pool is "[]", never "null".
func PoolToJSON(pool []models.ResolvedTrack) ([]byte, error) {
	if pool == nil {
		pool = []models.ResolvedTrack{}
	}
	data, err := json.MarshalIndent(pool, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal pool: %w", err)
	}
	return append(data, '\n'), nil
}

// PoolToCSV converts a pool to CSV with columns: Provider, ID, Title, Artist, Duration, URL
func PoolToCSV(pool []models.ResolvedTrack) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Provider", "ID", "Title", "Artist", "Duration", "URL"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range pool {
		record := []string{
			track.Provider,
			track.ID,
			track.Title,
			track.Artist,
			strconv.Itoa(track.DurationSec),
			track.SourceURL,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// PoolToText converts a pool to a numbered plain text list
func PoolToText(pool []models.ResolvedTrack) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(pool))
	for i, track := range pool {
		duration := ""
		if track.DurationSec > 0 {
			duration = fmt.Sprintf(" [%s]", FormatDuration(track.DurationSec))
		}
		fmt.Fprintf(&buf, "%d. %s - %s%s\n   %s\n", i+1, track.Artist, track.Title, duration, track.SourceURL)
	}

	return buf.Bytes(), nil
}

// Pool renders a pool in the named format.
func Pool(pool []models.ResolvedTrack, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case FormatJSON, "":
		return PoolToJSON(pool)
	case FormatCSV:
		return PoolToCSV(pool)
	case FormatText, "text":
		return PoolToText(pool)
	default:
		return nil, fmt.Errorf("%w: unknown format %q (want one of %s)", shared.ErrInvalidArgument, format, strings.Join(Formats, ", "))
	}
}

// WritePool renders a pool to w.
func WritePool(w io.Writer, pool []models.ResolvedTrack, format string) error {
	data, err := Pool(pool, format)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write pool: %w", err)
	}
	return nil
}

// WritePoolFile writes a pool to path.
//
// Defaults to pool_{epoch}.{format} as the filename.
func WritePoolFile(pool []models.ResolvedTrack, format, path string) (string, error) {
	if format == "" {
		format = FormatJSON
	}
	if path == "" {
		path = fmt.Sprintf("pool_%d.%s", time.Now().Unix(), strings.ToLower(format))
	}

	data, err := Pool(pool, format)
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write pool file: %w", err)
	}
	return path, nil
}

// ReadTracks decodes a JSON array of catalog tracks, as accepted by the resolve command.
func ReadTracks(r io.Reader) ([]models.CatalogTrack, error) {
	var tracks []models.CatalogTrack
	if err := json.NewDecoder(r).Decode(&tracks); err != nil {
		return nil, fmt.Errorf("%w: failed to decode tracks: %v", shared.ErrInvalidInput, err)
	}
	return tracks, nil
}

// WriteResolutions writes durable resolution rows as an aligned table.
func WriteResolutions(w io.Writer, rows []models.Resolution) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tSOURCE ID\tARTIST\tTITLE\tVIDEO\tATTEMPTS\tUPDATED")
	for _, r := range rows {
		video := r.VideoID
		if video == "" {
			video = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			r.Provider, r.SourceID, r.Artist, r.Title, video, r.Attempts, r.UpdatedAt.Format(time.DateTime))
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to write resolutions: %w", err)
	}
	return nil
}

// FormatDuration formats seconds as m:ss, or h:mm:ss past an hour.
func FormatDuration(seconds int) string {
	if seconds <= 0 {
		return "0:00"
	}
	h, m, s := seconds/3600, (seconds%3600)/60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
