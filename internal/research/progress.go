package research

const (
	progressStart    = 5
	progressRounds   = 10
	progressRoundsTo = 70
	progressReport   = 80
	progressSave     = 90
	progressDone     = 100
)

// tracker keeps reported progress monotonic within a job.
type tracker struct {
	last int
}

// at returns p, or the last reported value if p would move backwards.
func (t *tracker) at(p int) int {
	p = min(max(p, 0), progressDone)
	if p > t.last {
		t.last = p
	}
	return t.last
}

func (t *tracker) current() int {
	return t.last
}

// bands divides the round phase of the progress range into one band per
// research round.
type bands struct {
	width int
}

func newBands(maxDepth int) bands {
	return bands{width: (progressRoundsTo - progressRounds) / max(maxDepth, 1)}
}

// search is where round r starts.
func (b bands) search(r int) int {
	return progressRounds + r*b.width
}

// found is the progress after sub-query i of n in round r has returned.
func (b bands) found(r, i, n int) int {
	return b.search(r) + b.width/2*(i+1)/max(n, 1)
}

// analyze is the progress of the analysis step of round r.
func (b bands) analyze(r int) int {
	return b.search(r) + b.width*3/4
}
