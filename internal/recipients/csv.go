package recipients

import (
	"encoding/csv"
	"io"
	"log/slog"
	"strings"

	"github.com/myrjola/flowcast/internal/errors"
)

var (
	ErrMissingPhoneColumn = errors.NewSentinel("missing phone column")
	// ErrNoRecipients is returned by the campaign surfaces when no row of a list has a usable phone number.
	ErrNoRecipients = errors.NewSentinel("no valid phone numbers found")
)

var (
	phoneColumns = []string{"phonenumber", "phone"}
	nameColumns  = []string{"username", "name"}
)

// ReadCSV reads a recipient list. The first row is a header with a phone column named phoneNumber or phone and an
// optional name column named userName or name. Column names are case-insensitive.
func ReadCSV(r io.Reader) ([]Raw, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}
	phone := column(header, phoneColumns)
	if phone < 0 {
		return nil, errors.Wrap(ErrMissingPhoneColumn, "find phone column", slog.Any("header", header))
	}
	name := column(header, nameColumns)

	var raw []Raw
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return raw, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "read record")
		}
		raw = append(raw, Raw{Phone: field(record, phone), Name: field(record, name)})
	}
}

func column(header []string, names []string) int {
	for _, name := range names {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")), name) {
				return i
			}
		}
	}
	return -1
}

func field(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return record[i]
}

// WriteSampleCSV writes the template offered to operators for download.
func WriteSampleCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	records := [][]string{
		{"phoneNumber", "userName"},
		{"919999888877", "Optional Name"},
		{"917878787878", ""},
	}
	if err := writer.WriteAll(records); err != nil {
		return errors.Wrap(err, "write sample")
	}
	return nil
}
