package assets

import (
	"context"
	"io"
	"math"
)

// Progress is a byte count for one transfer. Total is -1 when unknown.
type Progress struct {
	Loaded int64
	Total  int64
}

// Percent returns loaded/total*100, and false when the total is unknown.
func (p Progress) Percent() (float64, bool) {
	if p.Total <= 0 {
		return 0, false
	}
	return math.Min(100, float64(p.Loaded)*100/float64(p.Total)), true
}

// progressReader reports every whole-percent step, or every read when the
// total is unknown, and stops early once ctx is done.
type progressReader struct {
	ctx     context.Context
	r       io.Reader
	p       Progress
	lastPct int
	report  func(Progress)
}

func newProgressReader(ctx context.Context, r io.Reader, total int64, report func(Progress)) *progressReader {
	return &progressReader{ctx: ctx, r: r, p: Progress{Total: total}, lastPct: -1, report: report}
}

func (pr *progressReader) Read(b []byte) (int, error) {
	if err := pr.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := pr.r.Read(b)
	if n > 0 {
		pr.p.Loaded += int64(n)
		pr.emit()
	}
	return n, err
}

func (pr *progressReader) emit() {
	if pr.report == nil {
		return
	}
	pct, known := pr.p.Percent()
	if !known {
		return
	}
	if whole := int(pct); whole != pr.lastPct {
		pr.lastPct = whole
		pr.report(pr.p)
	}
}
