package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"example.com/raceday/services/registration/internal/models"

	"github.com/pkg/errors"
)

// Archive is the portable text form of one event: a small key/value
// header followed by one tab-separated row per runner, ordered by start
// number. It round-trips through WriteTSV and ParseArchive so a race can
// be moved between installations.
type Archive struct {
	Title       string       `json:"title"`
	Year        int          `json:"year"`
	NextStartNo int          `json:"next_start_no"`
	Rows        []ArchiveRow `json:"rows"`
}

// ArchiveRow is one runner line of an archive. The age class column is
// written for human readers but ignored on import; it is recomputed from
// gender and birth year when the runner is recreated.
type ArchiveRow struct {
	StartNo   int    `json:"start_no"`
	Name      string `json:"name"`
	Team      string `json:"team"`
	BirthYear int    `json:"birth_year"`
	Gender    string `json:"gender"`
	AgeClass  string `json:"age_class"`
	Race      string `json:"race"`
	Time      string `json:"time"`
}

// NewArchive builds the export view of an event from its runner roster.
// Runners are expected in start number order.
func NewArchive(event *models.Event, runners []*models.Runner) *Archive {
	a := &Archive{
		Title:       event.Title,
		Year:        event.Year,
		NextStartNo: event.NextStartNo,
	}
	for _, r := range runners {
		a.Rows = append(a.Rows, ArchiveRow{
			StartNo:   r.StartNo,
			Name:      r.Name,
			Team:      r.Team,
			BirthYear: r.BirthYear,
			Gender:    string(r.Gender),
			AgeClass:  r.AgeClass,
			Race:      string(r.Race),
			Time:      r.TimeDisplay(),
		})
	}
	return a
}

// WriteTSV writes the archive in its on-wire text form.
func (a *Archive) WriteTSV(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "#title:\t%s\n", a.Title); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "#year:\t%d\n", a.Year); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "#next_start_no:\t%d\n", a.NextStartNo); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, "#start_no\tname\tteam\tbirth_year\tgender\tage_class\trace\ttime"); err != nil {
		return err
	}
	for _, row := range a.Rows {
		_, err := fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			row.StartNo, row.Name, row.Team, row.BirthYear,
			row.Gender, row.AgeClass, row.Race, row.Time)
		if err != nil {
			return err
		}
	}
	return nil
}

// ParseArchive reads an archive back from its text form. Header lines
// may appear in any order but must precede the column header row; rows
// after the column header are runner lines.
func ParseArchive(r io.Reader) (*Archive, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	a := &Archive{}
	sawColumnHeader := false

	for lineNo := 1; ; lineNo++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "archive line %d", lineNo)
		}
		if len(record) == 0 || (len(record) == 1 && record[0] == "") {
			continue
		}

		switch record[0] {
		case "#title:":
			if len(record) < 2 {
				return nil, errors.Errorf("archive line %d: missing title value", lineNo)
			}
			a.Title = record[1]
		case "#year:":
			a.Year, err = headerInt(record, lineNo)
			if err != nil {
				return nil, err
			}
		case "#next_start_no:":
			a.NextStartNo, err = headerInt(record, lineNo)
			if err != nil {
				return nil, err
			}
		case "#start_no":
			sawColumnHeader = true
		default:
			if !sawColumnHeader {
				return nil, errors.Errorf("archive line %d: runner row before column header", lineNo)
			}
			row, err := parseRow(record, lineNo)
			if err != nil {
				return nil, err
			}
			a.Rows = append(a.Rows, row)
		}
	}

	if !sawColumnHeader {
		return nil, errors.New("archive has no #start_no column header")
	}
	return a, nil
}

func headerInt(record []string, lineNo int) (int, error) {
	if len(record) < 2 {
		return 0, errors.Errorf("archive line %d: missing value for %s", lineNo, record[0])
	}
	n, err := strconv.Atoi(record[1])
	if err != nil {
		return 0, errors.Wrapf(err, "archive line %d", lineNo)
	}
	return n, nil
}

func parseRow(record []string, lineNo int) (ArchiveRow, error) {
	if len(record) < 8 {
		return ArchiveRow{}, errors.Errorf("archive line %d: expected 8 columns, got %d", lineNo, len(record))
	}
	startNo, err := strconv.Atoi(record[0])
	if err != nil {
		return ArchiveRow{}, errors.Wrapf(err, "archive line %d: start_no", lineNo)
	}
	birthYear, err := strconv.Atoi(record[3])
	if err != nil {
		return ArchiveRow{}, errors.Wrapf(err, "archive line %d: birth_year", lineNo)
	}
	return ArchiveRow{
		StartNo:   startNo,
		Name:      record[1],
		Team:      record[2],
		BirthYear: birthYear,
		Gender:    record[4],
		AgeClass:  record[5],
		Race:      record[6],
		Time:      record[7],
	}, nil
}
