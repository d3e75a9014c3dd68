package export

import (
	"bytes"
	"database/sql"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"
)

// encodeRows renders a header of columns followed by every remaining row of
// rows. It closes rows and returns the number of data rows written. Records
// are LF-terminated.
func encodeRows(columns []string, rows *sql.Rows) ([]byte, int64, error) {
	defer rows.Close()

	resultCols, err := rows.Columns()
	if err != nil {
		return nil, 0, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(columns); err != nil {
		return nil, 0, err
	}

	values := make([]any, len(resultCols))
	dest := make([]any, len(resultCols))
	for i := range values {
		dest[i] = &values[i]
	}
	record := make([]string, len(resultCols))

	var n int64
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, n, err
		}
		for i, v := range values {
			record[i] = formatValue(v)
		}
		if len(record) == 1 && record[0] == "" {
			// csv.Writer emits a blank line here, which readers skip.
			w.Flush()
			buf.WriteString("\"\"\n")
		} else if err := w.Write(record); err != nil {
			return nil, n, err
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return nil, n, err
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, n, err
	}

	return buf.Bytes(), n, nil
}

// formatValue renders a scanned column value as CSV field text. NULL becomes
// an empty field.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		if x.Nanosecond() != 0 {
			return x.Format("2006-01-02 15:04:05.000000")
		}
		return x.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprint(x)
	}
}
