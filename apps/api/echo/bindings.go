package echoapi

import (
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/aaronlou/innergrow.ai/core"
)

var (
	orderingParam = "ordering"

	errInvalidMultipart = echo.NewHTTPError(http.StatusBadRequest, "invalid multipart form")
)

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// Files holds the uploaded files of a multipart form field; Close must be called once they are stored.
type Files struct {
	Files   []core.File
	closers []multipart.File
}

func (fs *Files) Close() {
	for _, f := range fs.closers {
		_ = f.Close()
	}
}

// First returns the first file, nil when none was uploaded.
func (fs *Files) First() *core.File {
	if len(fs.Files) == 0 {
		return nil
	}
	return &fs.Files[0]
}

// bindFiles opens the files uploaded under `field`. Non-multipart requests yield no files.
func bindFiles(ctx echo.Context, field string) (*Files, error) {
	res := new(Files)
	form, err := ctx.MultipartForm()
	if err != nil {
		if err == http.ErrNotMultipart {
			return res, nil
		}
		return nil, errors.Wrap(errInvalidMultipart, err.Error())
	}

	for _, fh := range form.File[field] {
		f, err := fh.Open()
		if err != nil {
			res.Close()
			return nil, errors.Wrapf(err, "opening %s", fh.Filename)
		}
		res.closers = append(res.closers, f)
		res.Files = append(res.Files, core.File{
			Name:        fh.Filename,
			Size:        fh.Size,
			ContentType: fh.Header.Get(echo.HeaderContentType),
			Content:     f,
		})
	}
	return res, nil
}
