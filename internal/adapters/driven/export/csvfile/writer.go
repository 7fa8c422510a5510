// Package csvfile flattens joined records into the fixed-column CSV export.
package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/PaloAltoNetworks/Prisma-Channel-Resources/internal/core/domain"
	"github.com/PaloAltoNetworks/Prisma-Channel-Resources/internal/core/ports/driven"
	"github.com/PaloAltoNetworks/Prisma-Channel-Resources/internal/logger"
)

// Columns is the declared output column order. The header row is derived from
// this list once; individual records never reorder or extend it.
var Columns = []string{
	"sourceType",
	"repository",
	"repoCreationDate",
	"repoLastScanDate",
	"repoDescription",
	"repoUrl",
	"codeCategory",
	"frameworkType",
	"severity",
	"scanBranch",
	"isPublic",
	"filePath",
	"resourceName",
	"resourceId",
	"iacResourceName",
	"issue",
	"violationId",
	"riskFactors",
	"cvss",
	"causePackageName",
	"causePackageId",
	"firstDetected",
	"containerImageName",
	"metaDataInfo",
	"secretsValidationStatus",
	"secretValidationCode",
	"secretCreateDate",
	"license",
}

// filenameStamp is the layout for generated file names.
const filenameStamp = "20060102-150405"

// Writer writes joined records to a CSV file.
type Writer struct {
	output string
}

var _ driven.RecordWriter = (*Writer)(nil)

// NewWriter returns a Writer targeting output: an existing directory (or a
// path ending in a separator) receives a timestamped file, anything else is
// taken as the file path. Empty targets the current directory.
func NewWriter(output string) *Writer {
	return &Writer{output: output}
}

// Write emits the header and one row per record, returning the path written.
func (w *Writer) Write(ctx context.Context, records []domain.JoinedRecord) (string, error) {
	path, err := w.resolvePath()
	if err != nil {
		return "", err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("creating output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating output file: %w", err)
	}

	if err := writeAll(ctx, f, records); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing output file: %w", err)
	}

	logger.L().Debug("export written",
		zap.String("path", path),
		zap.Int("rows", len(records)))

	return path, nil
}

// writeAll streams the header and rows through a csv.Writer, which handles
// delimiter and quote escaping.
func writeAll(ctx context.Context, f *os.File, records []domain.JoinedRecord) error {
	cw := csv.NewWriter(f)

	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := cw.Write(row(&records[i])); err != nil {
			return fmt.Errorf("writing record: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing output: %w", err)
	}
	return nil
}

// resolvePath turns the configured output into a concrete file path.
func (w *Writer) resolvePath() (string, error) {
	out := w.output
	if out == "" {
		out = "."
	}

	if info, err := os.Stat(out); err == nil && info.IsDir() {
		return filepath.Join(out, defaultName()), nil
	}
	if strings.HasSuffix(out, string(os.PathSeparator)) {
		return filepath.Join(out, defaultName()), nil
	}
	return out, nil
}

func defaultName() string {
	return "code-security-findings-" + time.Now().UTC().Format(filenameStamp) + ".csv"
}

// row flattens one record in Columns order.
func row(r *domain.JoinedRecord) []string {
	return []string{
		r.SourceType,
		r.Repository,
		r.RepoCreationDate,
		r.RepoLastScanDate,
		r.RepoDescription,
		r.RepoURL,
		r.CodeCategory,
		r.FrameworkType,
		r.Severity,
		r.ScanBranch,
		strconv.FormatBool(r.IsPublic),
		r.FilePath,
		r.ResourceName,
		r.ResourceID,
		r.IacResourceName,
		r.Issue,
		r.ViolationID,
		strings.Join(r.RiskFactors, "; "),
		formatCVSS(r.CVSS),
		r.CausePackageName,
		r.CausePackageID,
		r.FirstDetected,
		r.ContainerImageName,
		r.MetadataInfo,
		r.SecretsValidationStatus,
		r.SecretValidationCode,
		r.SecretCreateDate,
		r.License,
	}
}

// formatCVSS renders zero as an empty cell: categories without a CVSS score
// (IaC misconfigurations, secrets) leave the field unset.
func formatCVSS(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
