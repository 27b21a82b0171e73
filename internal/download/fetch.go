package download

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"golang.org/x/crypto/sha3"

	"github.com/nao1215/pdfharvest/internal/model"
)

// pdfMagic is the header every accepted file must start with.
var pdfMagic = []byte("%PDF-")

// fetchResult is the product of one successful attempt.
type fetchResult struct {
	bytesWritten int64
	digest       string
}

// fetch performs one download attempt of task. The body is streamed into a
// temporary file next to the target and renamed into place only after the
// validity check passes; on any failure the partial file is removed.
func (o *Orchestrator) fetch(ctx context.Context, task model.DownloadTask) (fetchResult, *model.TaskError) {
	u, err := url.Parse(task.Link.URL)
	if err != nil {
		return fetchResult{}, model.NewTaskError(model.ErrorKindInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fetchResult{}, model.NewTaskError(model.ErrorKindInvalidURL,
			fmt.Errorf("unsupported url %q", task.Link.URL))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fetchResult{}, model.NewTaskError(model.ErrorKindInvalidURL, err)
	}
	req.Header.Set("Accept", "application/pdf,*/*;q=0.8")
	if task.Link.SourcePage != "" {
		req.Header.Set("Referer", task.Link.SourcePage)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return fetchResult{}, model.NewTaskError(model.ErrorKindNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck // drain for connection reuse
		return fetchResult{}, model.NewHTTPError(resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(task.TargetPath), ".pdfharvest-*.part")
	if err != nil {
		return fetchResult{}, model.NewTaskError(model.ErrorKindFilesystem, err)
	}
	tmpPath := tmp.Name()
	keep := false
	defer func() {
		if !keep {
			_ = tmp.Close()        //nolint:errcheck // already failing
			_ = os.Remove(tmpPath) //nolint:errcheck // best effort
		}
	}()

	hash := sha3.New256()
	w := io.MultiWriter(tmp, hash)
	buf := make([]byte, o.chunkSize)
	head := make([]byte, 0, len(pdfMagic))
	var written int64

	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if len(head) < len(pdfMagic) {
				head = append(head, buf[:min(n, len(pdfMagic)-len(head))]...)
			}
			if _, werr := w.Write(buf[:n]); werr != nil {
				return fetchResult{}, model.NewTaskError(model.ErrorKindFilesystem, werr)
			}
			written += int64(n)
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return fetchResult{}, bodyReadError(rerr)
		}
	}

	if err := tmp.Sync(); err != nil {
		return fetchResult{}, model.NewTaskError(model.ErrorKindFilesystem, err)
	}
	if err := tmp.Close(); err != nil {
		return fetchResult{}, model.NewTaskError(model.ErrorKindFilesystem, err)
	}

	if resp.ContentLength >= 0 && written != resp.ContentLength {
		te := model.NewTaskError(model.ErrorKindInvalidContent,
			fmt.Errorf("%w: expected %d bytes, got %d", errLengthMismatch, resp.ContentLength, written))
		te.Truncated = written < resp.ContentLength
		return fetchResult{}, te
	}
	if !bytes.Equal(head, pdfMagic) {
		return fetchResult{}, model.NewTaskError(model.ErrorKindInvalidContent, errNotPDF)
	}

	if err := os.Rename(tmpPath, task.TargetPath); err != nil {
		return fetchResult{}, model.NewTaskError(model.ErrorKindFilesystem, err)
	}
	keep = true

	return fetchResult{
		bytesWritten: written,
		digest:       hex.EncodeToString(hash.Sum(nil)),
	}, nil
}

// bodyReadError classifies a failure while streaming the body. A stream that
// ends short of its framing is truncated content; anything else (a timeout
// or a reset connection) is a network failure.
func bodyReadError(err error) *model.TaskError {
	if errors.Is(err, io.ErrUnexpectedEOF) {
		te := model.NewTaskError(model.ErrorKindInvalidContent, err)
		te.Truncated = true
		return te
	}
	return model.NewTaskError(model.ErrorKindNetwork, err)
}
