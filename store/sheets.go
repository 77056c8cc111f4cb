package store

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/bibliotecavirtual/biblioteca-sheets/log"
)

// Connect returns an authorised HTTP client for the Google APIs.
type Connect func(ctx context.Context) (*http.Client, error)

// Sheets is a row store backed by a single Google Sheets worksheet. The underlying Sheets
// service is created on first use and shared thereafter.
type Sheets struct {
	spreadsheet string
	sheet       string
	connect     Connect

	service *sheets.Service
	sync.Mutex
}

// Revision identifies the latest Google Drive revision of a spreadsheet.
type Revision struct {
	ID       string
	Modified time.Time
}

var spreadsheetURL = regexp.MustCompile(`^https://docs.google.com/spreadsheets/d/(.*?)(?:/.*)?$`)

// SpreadsheetID extracts the spreadsheet ID from a Google Sheets URL. Anything that
// is not a URL is assumed to be an ID already.
func SpreadsheetID(v string) (string, error) {
	v = strings.TrimSpace(v)

	if strings.HasPrefix(v, "https://") {
		match := spreadsheetURL.FindStringSubmatch(v)
		if len(match) < 2 || match[1] == "" {
			return "", fmt.Errorf("invalid spreadsheet URL - expected something like 'https://docs.google.com/spreadsheets/d/1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms'")
		}

		return match[1], nil
	}

	if v == "" {
		return "", fmt.Errorf("missing spreadsheet ID")
	}

	return v, nil
}

func NewSheets(spreadsheet, sheet string, connect Connect) *Sheets {
	return &Sheets{
		spreadsheet: spreadsheet,
		sheet:       sheet,
		connect:     connect,
	}
}

func (s *Sheets) Sheet() string {
	return s.sheet
}

func (s *Sheets) ReadAll(ctx context.Context) ([][]string, error) {
	google, err := s.client(ctx)
	if err != nil {
		return nil, err
	}

	response, err := google.Spreadsheets.Values.Get(s.spreadsheet, Quote(s.sheet)).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve data from sheet (%w)", err)
	}

	log.Debugf("retrieved %v rows from worksheet %v", len(response.Values), s.sheet)

	return toRows(response.Values), nil
}

func (s *Sheets) UpdateRange(ctx context.Context, area string, rows [][]string) error {
	google, err := s.client(ctx)
	if err != nil {
		return err
	}

	data := sheets.ValueRange{
		Range:  area,
		Values: toValues(rows),
	}

	if _, err := google.Spreadsheets.Values.Update(s.spreadsheet, area, &data).
		ValueInputOption("RAW").
		Context(ctx).
		Do(); err != nil {
		return fmt.Errorf("error updating range %v (%w)", area, err)
	}

	log.Debugf("updated range %v", area)

	return nil
}

func (s *Sheets) AppendRow(ctx context.Context, row []string) error {
	google, err := s.client(ctx)
	if err != nil {
		return err
	}

	data := sheets.ValueRange{
		Values: toValues([][]string{row}),
	}

	if _, err := google.Spreadsheets.Values.Append(s.spreadsheet, Quote(s.sheet), &data).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do(); err != nil {
		return fmt.Errorf("error appending row to %v (%w)", s.sheet, err)
	}

	log.Debugf("appended row to worksheet %v", s.sheet)

	return nil
}

// Replace clears the worksheet and writes the rows starting at A1.
func (s *Sheets) Replace(ctx context.Context, rows [][]string) error {
	google, err := s.client(ctx)
	if err != nil {
		return err
	}

	blank := sheets.BatchClearValuesRequest{
		Ranges: []string{Quote(s.sheet)},
	}

	if _, err := google.Spreadsheets.Values.BatchClear(s.spreadsheet, &blank).Context(ctx).Do(); err != nil {
		return fmt.Errorf("error clearing worksheet %v (%w)", s.sheet, err)
	}

	rq := sheets.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data: []*sheets.ValueRange{
			{
				Range:  fmt.Sprintf("%s!A1", Quote(s.sheet)),
				Values: toValues(rows),
			},
		},
	}

	if _, err := google.Spreadsheets.Values.BatchUpdate(s.spreadsheet, &rq).Context(ctx).Do(); err != nil {
		return fmt.Errorf("error writing worksheet %v (%w)", s.sheet, err)
	}

	return nil
}

// Revision returns the latest Google Drive revision of the spreadsheet.
func (s *Sheets) Revision(ctx context.Context) (*Revision, error) {
	client, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}

	gdrive, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create new Drive client (%w)", err)
	}

	page := ""
	latest := Revision{}

	for {
		call := gdrive.Revisions.List(s.spreadsheet).Fields("nextPageToken", "revisions(id,modifiedTime)").Context(ctx)
		if page != "" {
			call.PageToken(page)
		}

		revisions, err := call.Do()
		if err != nil {
			return nil, err
		}

		for _, revision := range revisions.Revisions {
			modified, err := time.Parse(time.RFC3339, revision.ModifiedTime)
			if err != nil {
				return nil, err
			}

			if latest.Modified.Before(modified) {
				latest.ID = revision.Id
				latest.Modified = modified
			}
		}

		if page = revisions.NextPageToken; page == "" {
			break
		}
	}

	if latest.Modified.IsZero() {
		return nil, fmt.Errorf("unable to identify latest revision for spreadsheet %s", s.spreadsheet)
	}

	return &latest, nil
}

func (s *Sheets) client(ctx context.Context) (*sheets.Service, error) {
	s.Lock()
	defer s.Unlock()

	if s.service != nil {
		return s.service, nil
	}

	client, err := s.connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("authentication/authorization error (%w)", err)
	}

	google, err := sheets.NewService(context.WithoutCancel(ctx), option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create new Sheets client (%w)", err)
	}

	s.service = google

	log.Infof("created Google Sheets client for spreadsheet %v", s.spreadsheet)

	return s.service, nil
}

func toRows(values [][]any) [][]string {
	rows := make([][]string, 0, len(values))
	for _, record := range values {
		row := make([]string, len(record))
		for i, v := range record {
			row[i] = fmt.Sprintf("%v", v)
		}

		rows = append(rows, row)
	}

	return rows
}

func toValues(rows [][]string) [][]any {
	values := make([][]any, 0, len(rows))
	for _, row := range rows {
		record := make([]any, len(row))
		for i, v := range row {
			record[i] = v
		}

		values = append(values, record)
	}

	return values
}
