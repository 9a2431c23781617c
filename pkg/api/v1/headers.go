package apiv1

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/facilityhub/facility/pkg/types"
)

const (
	HeaderTotalCount = "X-Total-Count"
	HeaderLink       = "Link"
)

func alertHeader() string  { return "X-" + ApplicationName + "-alert" }
func errorHeader() string  { return "X-" + ApplicationName + "-error" }
func paramsHeader() string { return "X-" + ApplicationName + "-params" }

// setAlert tells the client which record a successful mutation touched
func setAlert(c echo.Context, message string, id int64) {
	h := c.Response().Header()
	h.Set(alertHeader(), message)
	h.Set(paramsHeader(), strconv.FormatInt(id, 10))
}

func setCreatedAlert(c echo.Context, kind types.Kind, id int64) {
	setAlert(c, fmt.Sprintf("A new %s is created with identifier %d", kind, id), id)
}

func setUpdatedAlert(c echo.Context, kind types.Kind, id int64) {
	setAlert(c, fmt.Sprintf("A %s is updated with identifier %d", kind, id), id)
}

func setDeletedAlert(c echo.Context, kind types.Kind, id int64) {
	setAlert(c, fmt.Sprintf("A %s is deleted with identifier %d", kind, id), id)
}

// setFailureAlert reports a rejected mutation by error key
func setFailureAlert(c echo.Context, kind types.Kind, key string) {
	h := c.Response().Header()
	h.Set(errorHeader(), "error."+key)
	h.Set(paramsHeader(), string(kind))
}

// setPaginationHeaders writes X-Total-Count and an RFC 5988 Link header
// pointing at the neighbouring pages of the current request URL
func setPaginationHeaders[T any](c echo.Context, page *types.Page[T]) {
	h := c.Response().Header()
	h.Set(HeaderTotalCount, strconv.FormatInt(page.Total, 10))

	current := page.Pageable.Page
	size := page.Pageable.Size
	lastPage := page.TotalPages() - 1
	if lastPage < 0 {
		lastPage = 0
	}

	var links []string
	if current < lastPage {
		links = append(links, pageLink(c.Request().URL, current+1, size, "next"))
	}
	if current > 0 {
		links = append(links, pageLink(c.Request().URL, current-1, size, "prev"))
	}
	links = append(links, pageLink(c.Request().URL, lastPage, size, "last"))
	links = append(links, pageLink(c.Request().URL, 0, size, "first"))

	h.Set(HeaderLink, strings.Join(links, ","))
}

func pageLink(u *url.URL, page, size int, rel string) string {
	query := u.Query()
	query.Set("page", strconv.Itoa(page))
	query.Set("size", strconv.Itoa(size))

	link := url.URL{Path: u.Path, RawQuery: query.Encode()}
	return fmt.Sprintf("<%s>; rel=\"%s\"", link.String(), rel)
}
