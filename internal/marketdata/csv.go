package marketdata

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ericfunman/boursicotor-sub000/internal/types"
	"github.com/ericfunman/boursicotor-sub000/pkg/errors"
)

// timeLayouts are tried in order when parsing the time column.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// LoadCSV reads a bar series from a CSV file with a header row. Recognized
// columns are time, open, high, low, close and volume; column order is taken
// from the header. The symbol is stamped onto every bar.
func LoadCSV(path, symbol string) ([]types.Bar, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeMarketDataUnavailable, err, "failed to open %s", path)
	}
	defer file.Close()

	reader := csv.NewReader(file)

	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeMarketDataUnavailable, err, "failed to read header of %s", path)
	}

	index := map[string]int{}
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}

	for _, required := range []string{"time", "open", "high", "low", "close", "volume"} {
		if _, ok := index[required]; !ok {
			return nil, errors.Newf(errors.ErrCodeMarketDataUnavailable,
				"%s is missing required column %q", path, required)
		}
	}

	bars := []types.Bar{}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}

		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeMarketDataUnavailable, err, "failed to read row of %s", path)
		}

		bar, err := parseBar(record, index, symbol)
		if err != nil {
			return nil, err
		}

		bars = append(bars, bar)
	}

	if len(bars) == 0 {
		return nil, errors.Newf(errors.ErrCodeMarketDataUnavailable, "%s contains no bars", path)
	}

	return bars, nil
}

func parseBar(record []string, index map[string]int, symbol string) (types.Bar, error) {
	timestamp, err := parseTime(record[index["time"]])
	if err != nil {
		return types.Bar{}, err
	}

	fields := map[string]float64{}

	for _, name := range []string{"open", "high", "low", "close", "volume"} {
		value, err := strconv.ParseFloat(strings.TrimSpace(record[index[name]]), 64)
		if err != nil {
			return types.Bar{}, errors.Wrapf(errors.ErrCodeMarketDataUnavailable, err,
				"failed to parse %s value %q", name, record[index[name]])
		}

		fields[name] = value
	}

	return types.Bar{
		Time:   timestamp,
		Symbol: symbol,
		Open:   fields["open"],
		High:   fields["high"],
		Low:    fields["low"],
		Close:  fields["close"],
		Volume: fields["volume"],
	}, nil
}

func parseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)

	for _, layout := range timeLayouts {
		if timestamp, err := time.Parse(layout, value); err == nil {
			return timestamp, nil
		}
	}

	// Unix seconds as a fallback.
	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Unix(seconds, 0).UTC(), nil
	}

	return time.Time{}, errors.Newf(errors.ErrCodeMarketDataUnavailable, "unparseable time value %q", value)
}
