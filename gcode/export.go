package gcode

import (
	"io"

	"github.com/mastercactapus/plotter/motion"
)

// JobReader yields the blocks that replay a planned job: G0 for travel, G1
// with the segment's peak feed for drawing, M3 and M5 for the pen.
type JobReader struct {
	job    motion.Job
	header BlocksReader
	n      int
	feed   float64
}

// NewJobReader returns a Reader over job.
func NewJobReader(job motion.Job) *JobReader {
	return &JobReader{
		job: job,
		header: BlocksReader{Blocks: []Block{
			{{W: 'G', Arg: 21}, {W: 'G', Arg: 90}},
		}},
	}
}

func (r *JobReader) Read() (Block, error) {
	if b, err := r.header.Read(); err == nil {
		return b, nil
	}
	if r.n == len(r.job.Steps) {
		return nil, io.EOF
	}
	st := r.job.Steps[r.n]
	r.n++

	if st.Kind == motion.PenStep {
		if st.Pen == motion.PenDown {
			return Block{{W: 'M', Arg: 3}}, nil
		}
		return Block{{W: 'M', Arg: 5}}, nil
	}

	to := r.job.Limits.ToMM(st.Move.To)
	if st.Travel {
		return Block{{W: 'G', Arg: 0}, {W: 'X', Arg: to.X}, {W: 'Y', Arg: to.Y}}, nil
	}
	b := Block{{W: 'G', Arg: 1}, {W: 'X', Arg: to.X}, {W: 'Y', Arg: to.Y}}
	// feed in mm/min
	feed := st.Move.Peak / r.job.Limits.VelocitySteps() * r.job.Limits.MaxVelocity * 60
	if feed > 0 && formatFloat(feed, 3) != formatFloat(r.feed, 3) {
		b = append(b, Word{W: 'F', Arg: feed})
		r.feed = feed
	}
	return b, nil
}

// Export writes job as G-code text.
func Export(w io.Writer, job motion.Job) error {
	_, err := io.Copy(w, NewBuffer(NewJobReader(job)))
	return err
}
