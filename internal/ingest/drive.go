package ingest

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const (
	folderMimeType = "application/vnd.google-apps.folder"
	sheetMimeType  = "application/vnd.google-apps.spreadsheet"
	xlsxMimeType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// DriveSource reads exports from one Google Drive folder with a service account.
type DriveSource struct {
	srv      *drive.Service
	folderID string
}

// NewDriveSource authenticates with service-account credentials. folder is either a
// folder id or a slash-separated path from the drive root. ctx bounds the folder lookup
// only; the client outlives it.
func NewDriveSource(ctx context.Context, credentialsJSON, folder string) (*DriveSource, error) {
	config, err := google.JWTConfigFromJSON([]byte(credentialsJSON), drive.DriveReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse drive credentials: %w", err)
	}

	clientCtx := context.Background()
	srv, err := drive.NewService(clientCtx, option.WithHTTPClient(config.Client(clientCtx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create drive client: %w", err)
	}

	s := &DriveSource{srv: srv, folderID: folder}
	if strings.Contains(folder, "/") {
		id, err := s.findFolderByPath(ctx, folder)
		if err != nil {
			return nil, err
		}
		s.folderID = id
	}
	if s.folderID == "" {
		s.folderID = "root"
	}
	return s, nil
}

func (s *DriveSource) Name() string { return "drive" }

// ListFiles pages through the folder. Native spreadsheets are exported as XLSX.
func (s *DriveSource) ListFiles(ctx context.Context) ([]File, error) {
	var files []File
	call := s.srv.Files.List().
		Q(fmt.Sprintf("'%s' in parents and trashed=false", escapeQuery(s.folderID))).
		Fields("nextPageToken, files(id, name, mimeType, modifiedTime, size)").
		PageSize(200).
		Context(ctx)

	err := call.Pages(ctx, func(page *drive.FileList) error {
		for _, f := range page.Files {
			file, ok := driveFile(f)
			if ok {
				files = append(files, file)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("unable to list drive folder: %w", err)
	}
	return files, nil
}

func driveFile(f *drive.File) (File, bool) {
	format, ok := formatFor(f.Name)
	if f.MimeType == sheetMimeType {
		format, ok = FormatXLSX, true
	}
	if !ok {
		return File{}, false
	}

	modified, err := time.Parse(time.RFC3339, f.ModifiedTime)
	if err != nil {
		return File{}, false
	}
	return File{ID: f.Id, Name: f.Name, Format: format, ModifiedTime: modified.UTC(), Size: f.Size}, true
}

// Open streams the file body. Native spreadsheets go through the export endpoint.
func (s *DriveSource) Open(ctx context.Context, file File) (io.ReadCloser, error) {
	if _, native := formatFor(file.Name); !native {
		resp, err := s.srv.Files.Export(file.ID, xlsxMimeType).Context(ctx).Download()
		if err != nil {
			return nil, fmt.Errorf("unable to export %s: %w", file.Name, err)
		}
		return resp.Body, nil
	}

	resp, err := s.srv.Files.Get(file.ID).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("unable to download %s: %w", file.Name, err)
	}
	return resp.Body, nil
}

func (s *DriveSource) findFolderByPath(ctx context.Context, folderPath string) (string, error) {
	currentID := "root"
	for _, name := range strings.Split(folderPath, "/") {
		if name == "" {
			continue
		}

		result, err := s.srv.Files.List().
			Q(fmt.Sprintf("'%s' in parents and name='%s' and mimeType='%s' and trashed=false",
				escapeQuery(currentID), escapeQuery(name), folderMimeType)).
			Fields("files(id, name)").
			Context(ctx).
			Do()
		if err != nil {
			return "", fmt.Errorf("error finding folder %s: %w", name, err)
		}
		if len(result.Files) == 0 {
			return "", fmt.Errorf("folder not found: %s", name)
		}
		currentID = result.Files[0].Id
	}
	return currentID, nil
}

// escapeQuery quotes a value for the Drive query language.
func escapeQuery(v string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(v)
}
