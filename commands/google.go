package commands

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	SHEETS = "https://www.googleapis.com/auth/spreadsheets"
	DRIVE  = "https://www.googleapis.com/auth/drive.metadata.readonly"
)

type revision struct {
	id       string
	modified time.Time
}

func newSheets(ctx context.Context, client *http.Client) (*sheets.Service, error) {
	google, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create new Sheets client (%v)", err)
	}

	return google, nil
}

func newDrive(ctx context.Context, client *http.Client) (*drive.Service, error) {
	gdrive, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create new Drive client (%v)", err)
	}

	return gdrive, nil
}

func getSpreadsheet(google *sheets.Service, id string) (*sheets.Spreadsheet, error) {
	spreadsheet, err := google.Spreadsheets.Get(id).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch spreadsheet (%v)", err)
	}

	return spreadsheet, nil
}

func getSheet(spreadsheet *sheets.Spreadsheet, area string) (*sheets.Sheet, error) {
	match := regexp.MustCompile(`(.+?)!.*`).FindStringSubmatch(area)
	if len(match) < 2 {
		return nil, fmt.Errorf("invalid worksheet range '%s' - expected something like 'Projects!A1:G'", area)
	}

	name := match[1]
	for _, sheet := range spreadsheet.Sheets {
		if strings.EqualFold(strings.TrimSpace(sheet.Properties.Title), strings.TrimSpace(name)) {
			return sheet, nil
		}
	}

	return nil, fmt.Errorf("unable to identify worksheet for '%s'", area)
}

// getRevision walks the Drive revisions list for the spreadsheet and returns
// the latest revision. The watch command polls this to detect edits without
// re-reading the whole sheet.
func getRevision(gdrive *drive.Service, fileId string, ctx context.Context) (*revision, error) {
	page := ""
	latest := revision{
		id:       "",
		modified: time.Time{},
	}

	for {
		call := drive.NewRevisionsService(gdrive).List(fileId)
		if page != "" {
			call.PageToken(page)
		}

		revisions, err := call.Context(ctx).Do()
		if err != nil {
			return nil, err
		}

		for _, r := range revisions.Revisions {
			datetime, err := time.Parse("2006-01-02T15:04:05.999Z", r.ModifiedTime)
			if err != nil {
				return nil, err
			}

			if latest.modified.Before(datetime) {
				latest.id = r.Id
				latest.modified = datetime
			}
		}

		if page = revisions.NextPageToken; page == "" {
			break
		}
	}

	if latest.modified.IsZero() {
		return nil, fmt.Errorf("unable to identify latest revision for file ID %s", fileId)
	}

	return &latest, nil
}
