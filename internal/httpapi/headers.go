package httpapi

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/refdata-io/lookupd"
)

var exposedHeaders = strings.Join([]string{
	"X-Page", "X-Per-Page", "X-Total", "X-Total-Pages",
	"X-Prev-Page", "X-Next-Page", "Link",
}, ", ")

// setPageHeaders writes the pagination header set for an index-served list.
// Results served from the primary store carry no reliable total, so FromDB
// results get no headers at all.
func setPageHeaders(c *gin.Context, result *lookupd.ListResult) {
	if result.FromDB {
		return
	}

	totalPages := int64(0)
	if result.PerPage > 0 {
		totalPages = (result.Total + int64(result.PerPage) - 1) / int64(result.PerPage)
	}

	c.Header("X-Page", strconv.Itoa(result.Page))
	c.Header("X-Per-Page", strconv.Itoa(result.PerPage))
	c.Header("X-Total", strconv.FormatInt(result.Total, 10))
	c.Header("X-Total-Pages", strconv.FormatInt(totalPages, 10))

	links := make([]string, 0, 4)
	links = append(links, pageLink(c, 1, result.PerPage, "first"))
	if result.Page > 1 {
		prev := int64(result.Page - 1)
		if prev > totalPages {
			prev = totalPages
		}
		if prev >= 1 {
			c.Header("X-Prev-Page", strconv.FormatInt(prev, 10))
			links = append(links, pageLink(c, prev, result.PerPage, "prev"))
		}
	}
	if int64(result.Page) < totalPages {
		c.Header("X-Next-Page", strconv.Itoa(result.Page+1))
		links = append(links, pageLink(c, int64(result.Page+1), result.PerPage, "next"))
	}
	if totalPages > 0 {
		links = append(links, pageLink(c, totalPages, result.PerPage, "last"))
	}

	c.Header("Link", strings.Join(links, ", "))
	c.Header("Access-Control-Expose-Headers", exposedHeaders)
}

func pageLink(c *gin.Context, page int64, perPage int, rel string) string {
	u := *c.Request.URL
	q := u.Query()
	q.Set("page", strconv.FormatInt(page, 10))
	q.Set("perPage", strconv.Itoa(perPage))
	u.RawQuery = q.Encode()
	return fmt.Sprintf("<%s>; rel=\"%s\"", u.RequestURI(), rel)
}
