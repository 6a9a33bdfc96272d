package google

import (
	"context"
	"fmt"
	"os"
	"time"

	"leihlokal/internal/domain"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsService mirrors month grids into one tab per month of a spreadsheet.
type SheetsService struct {
	service       *sheets.Service
	spreadsheetID string
	sheetPrefix   string
}

var _ domain.ScheduleWriter = (*SheetsService)(nil)

func NewSheetsService(ctx context.Context, credentialsFile, spreadsheetID, sheetPrefix string) (*SheetsService, error) {
	// Читаем файл учетных данных сервисного аккаунта
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}

	return newWithService(srv, spreadsheetID, sheetPrefix), nil
}

func newWithService(srv *sheets.Service, spreadsheetID, sheetPrefix string) *SheetsService {
	return &SheetsService{
		service:       srv,
		spreadsheetID: spreadsheetID,
		sheetPrefix:   sheetPrefix,
	}
}

// TabName is the sheet title used for month.
func (s *SheetsService) TabName(month time.Time) string {
	return fmt.Sprintf("%s-%s", s.sheetPrefix, month.Format("2006-01"))
}

// TestConnection проверяет доступ к таблице
func (s *SheetsService) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// GetSheetIDByName returns the sheet id of a tab, or found=false.
func (s *SheetsService) GetSheetIDByName(ctx context.Context, title string) (int64, bool, error) {
	spreadsheet, err := s.service.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return 0, false, fmt.Errorf("unable to get spreadsheet: %w", err)
	}
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == title {
			return sheet.Properties.SheetId, true, nil
		}
	}
	return 0, false, nil
}

func (s *SheetsService) ensureTab(ctx context.Context, title string) (int64, error) {
	id, found, err := s.GetSheetIDByName(ctx, title)
	if err != nil {
		return 0, err
	}
	if found {
		return id, nil
	}

	resp, err := s.service.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: title}},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("unable to add sheet %q: %w", title, err)
	}
	if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil && resp.Replies[0].AddSheet.Properties != nil {
		return resp.Replies[0].AddSheet.Properties.SheetId, nil
	}
	return 0, fmt.Errorf("add sheet %q: empty reply", title)
}

// WriteMonth replaces the month tab with header and rows.
func (s *SheetsService) WriteMonth(ctx context.Context, month time.Time, header []string, rows [][]string) error {
	title := s.TabName(month)
	sheetID, err := s.ensureTab(ctx, title)
	if err != nil {
		return err
	}

	// Полностью очищаем и перезаписываем лист
	_, err = s.service.Spreadsheets.Values.Clear(s.spreadsheetID, title+"!A:ZZ", &sheets.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to clear sheet: %w", err)
	}

	values := make([][]interface{}, 0, len(rows)+1)
	values = append(values, toInterfaces(header))
	for _, r := range rows {
		values = append(values, toInterfaces(r))
	}

	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, title+"!A1", &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to write sheet: %w", err)
	}

	_, err = s.service.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: headerFormat(sheetID, len(header)),
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to format sheet: %w", err)
	}
	return nil
}

func headerFormat(sheetID int64, cols int) []*sheets.Request {
	return []*sheets.Request{
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   int64(cols),
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						HorizontalAlignment: "CENTER",
						TextFormat:          &sheets.TextFormat{Bold: true},
						BackgroundColor:     &sheets.Color{Red: 0.86, Green: 0.92, Blue: 0.97},
					},
				},
				Fields: "userEnteredFormat(backgroundColor,textFormat,horizontalAlignment)",
			},
		},
		{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId:        sheetID,
					GridProperties: &sheets.GridProperties{FrozenRowCount: 1, FrozenColumnCount: 1},
				},
				Fields: "gridProperties(frozenRowCount,frozenColumnCount)",
			},
		},
	}
}

func toInterfaces(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
