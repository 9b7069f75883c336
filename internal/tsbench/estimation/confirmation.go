package estimation

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	maxPointsThreshold   = 1_000_000_000
	maxDBSizeThreshold   = 10 * 1024 * 1024 * 1024 // 10GB
	maxDurationThreshold = time.Hour
)

var p = message.NewPrinter(language.English)

func ShouldPrompt(est Estimation) bool {
	return est.Points > maxPointsThreshold ||
		est.EstimatedDatabaseSizeBytes > maxDBSizeThreshold ||
		est.MinimumDuration > maxDurationThreshold
}

func Display(est Estimation, out io.Writer) {
	p.Fprintln(out, "=================================================================")
	p.Fprintln(out, "Benchmark Estimation")
	p.Fprintln(out, "=================================================================")
	p.Fprintf(out, "Ingest batches:        %d\n", est.Batches)
	p.Fprintf(out, "Points written:        %d\n", est.Points)
	p.Fprintf(out, "Estimated DB size:     %s\n", FormatBytes(est.EstimatedDatabaseSizeBytes))
	p.Fprintf(out, "Total queries:         %d\n", est.Queries)
	p.Fprintf(out, "Minimum duration:      %s\n", est.MinimumDuration)
	p.Fprintln(out, "=================================================================")
}

// DisplayEstimationAndConfirm prints the estimation and asks for confirmation on in.
func DisplayEstimationAndConfirm(est Estimation, in io.Reader, out io.Writer) (bool, error) {
	Display(est, out)
	p.Fprintln(out)
	p.Fprint(out, "This run will generate significant data. Proceed? (y/N): ")

	reader := bufio.NewReader(in)
	response, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("reading user input: %w", err)
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes", nil
}
