package ledger

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"

	"github.com/guardzcom/slack-channel-cleanup/internal/domain"
)

var (
	spreadsheetIDPattern = regexp.MustCompile(`/d/([a-zA-Z0-9-_]+)`)
	gidPattern           = regexp.MustCompile(`[#&]gid=(\d+)`)
)

// SheetStore persists the ledger in a Google Sheets tab, authenticated with
// a service account key file. The sheet must be shared with the service
// account email.
type SheetStore struct {
	svc           *sheets.Service
	spreadsheetID string
	tabName       string
}

// ParseSheetURL extracts the spreadsheet ID and tab gid from a Sheets URL.
// A URL without a gid fragment targets the first tab.
func ParseSheetURL(url string) (spreadsheetID, gid string, err error) {
	m := spreadsheetIDPattern.FindStringSubmatch(url)
	if m == nil {
		return "", "", &domain.ConfigError{
			Reason: "invalid Google Sheets URL; expected https://docs.google.com/spreadsheets/d/YOUR-SHEET-ID",
		}
	}
	gid = "0"
	if gm := gidPattern.FindStringSubmatch(url); gm != nil {
		gid = gm[1]
	}
	return m[1], gid, nil
}

// NewSheetStore connects to the spreadsheet and resolves the tab title for
// the gid in the URL.
func NewSheetStore(ctx context.Context, url, credentialsFile string) (*SheetStore, error) {
	spreadsheetID, gid, err := ParseSheetURL(url)
	if err != nil {
		return nil, err
	}
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope))
	if err != nil {
		return nil, &domain.ConfigError{Reason: "load Google service account credentials", Err: err}
	}
	meta, err := svc.Spreadsheets.Get(spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return nil, sheetError("fetch spreadsheet metadata", err)
	}
	var tabName string
	for _, sh := range meta.Sheets {
		if strconv.FormatInt(sh.Properties.SheetId, 10) == gid {
			tabName = sh.Properties.Title
			break
		}
	}
	if tabName == "" {
		return nil, &domain.ConfigError{Reason: fmt.Sprintf("sheet with gid=%s not found in the spreadsheet", gid)}
	}
	return &SheetStore{svc: svc, spreadsheetID: spreadsheetID, tabName: tabName}, nil
}

func (s *SheetStore) Read(ctx context.Context) ([]domain.Record, error) {
	resp, err := s.svc.Spreadsheets.Values.
		Get(s.spreadsheetID, fmt.Sprintf("'%s'!A:Z", s.tabName)).
		Context(ctx).Do()
	if err != nil {
		return nil, sheetError("read sheet", err)
	}
	if len(resp.Values) == 0 {
		return nil, nil
	}
	header := make([]string, len(resp.Values[0]))
	for i, v := range resp.Values[0] {
		header[i] = fmt.Sprint(v)
	}
	if err := validateHeaders(header); err != nil {
		return nil, err
	}
	var records []domain.Record
	for _, row := range resp.Values[1:] {
		cells := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(row) {
				cells[h] = fmt.Sprint(row[i])
			} else {
				cells[h] = ""
			}
		}
		rec, err := recordFromRow(cells)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *SheetStore) Write(ctx context.Context, records []domain.Record) error {
	values := make([][]any, 0, len(records)+1)
	header := make([]any, len(Headers))
	for i, h := range Headers {
		header[i] = h
	}
	values = append(values, header)
	for _, rec := range records {
		row := rowFromRecord(rec)
		cells := make([]any, len(row))
		for i, c := range row {
			cells[i] = c
		}
		values = append(values, cells)
	}
	// Blank out rows left over from a previously longer ledger.
	if _, err := s.svc.Spreadsheets.Values.
		Clear(s.spreadsheetID, fmt.Sprintf("'%s'!A:Z", s.tabName), &sheets.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return sheetError("clear sheet", err)
	}
	_, err := s.svc.Spreadsheets.Values.
		Update(s.spreadsheetID, fmt.Sprintf("'%s'!A1", s.tabName), &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).Do()
	if err != nil {
		return sheetError("update sheet", err)
	}
	return nil
}

func sheetError(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case 404:
			return &domain.ConfigError{Reason: "sheet not found; check the URL"}
		case 403:
			return &domain.ConfigError{Reason: "permission denied; share the sheet with the service account email"}
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
