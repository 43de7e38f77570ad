package adapter

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"tdgate/internal/constants"
	apperrors "tdgate/internal/errors"
	"tdgate/pkg/audio"
	"tdgate/pkg/engine"
)

// artifactKind selects where a resolved file lands and how it is
// materialized.
type artifactKind string

const (
	artifactVoice artifactKind = "voice"
	artifactPhoto artifactKind = "photo"
)

func (k artifactKind) dir() string {
	if k == artifactVoice {
		return constants.VoiceDirName
	}
	return constants.PhotoDirName
}

// fileResolution is the cached outcome for one engine file id. A failed
// entry is remembered so the file is never re-requested.
type fileResolution struct {
	url    string
	path   string
	failed bool
}

func (a *Adapter) cachedFile(fileID int64) (*fileResolution, bool) {
	a.fileMu.Lock()
	defer a.fileMu.Unlock()
	res, ok := a.fileCache[fileID]
	return res, ok
}

func (a *Adapter) cacheFile(fileID int64, res *fileResolution) {
	a.fileMu.Lock()
	a.fileCache[fileID] = res
	a.fileMu.Unlock()
}

// Resolve downloads one engine file and materializes it under the
// session directory, returning its gateway URL. Outcomes are cached,
// including permanent failures; a known-missing file short-circuits
// without touching the engine again.
func (a *Adapter) Resolve(ctx context.Context, fileID int64, kind artifactKind) (string, error) {
	if res, ok := a.cachedFile(fileID); ok {
		if res.failed {
			return "", apperrors.New(apperrors.ErrCodeFileNotFound, "file is not available")
		}
		return res.url, nil
	}

	log := a.logger.WithFields(logrus.Fields{"file_id": fileID, "kind": string(kind)})

	var lastErr error
	for attempt := 1; attempt <= a.cfg.Timing.FileAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		sub := a.pump.subscribe()
		a.send(engine.GetFile(fileID))

		var (
			file       *engine.File
			downloaded bool
			engineErr  *engine.ErrorEvent
		)
		a.pump.drain(sub, a.cfg.Timing.FileWindow, func(ev engine.Event) bool {
			var f engine.File
			switch ev := ev.(type) {
			case *engine.FileEvent:
				f = ev.File
			case *engine.UpdateFile:
				f = ev.File
			case *engine.ErrorEvent:
				engineErr = ev
				return true
			default:
				return false
			}
			if f.ID != fileID {
				return false
			}
			if f.Local.IsDownloadingCompleted && f.Local.Path != "" {
				file = &f
				return true
			}
			// At most one download command per attempt, regardless of how
			// many progress events arrive meanwhile.
			if !downloaded && f.Local.CanBeDownloaded && !f.Local.IsDownloadingActive {
				a.send(engine.DownloadFile(fileID))
				downloaded = true
			}
			return false
		})
		a.pump.unsubscribe(sub)

		if engineErr != nil {
			appErr := apperrors.NewEngineError("resolve_file", engineErr.Code, engineErr.Message)
			if appErr.Code == apperrors.ErrCodeFileNotFound {
				log.Warn("File reported missing, caching permanent failure")
				a.cacheFile(fileID, &fileResolution{failed: true})
				return "", appErr
			}
			log.WithError(appErr).Error("Engine error while resolving file")
			return "", appErr
		}

		if file != nil {
			url, local, err := a.materialize(ctx, file.Local.Path, kind)
			if err != nil {
				lastErr = err
				log.WithError(err).Error("Failed to materialize file artifact")
				continue
			}
			a.cacheFile(fileID, &fileResolution{url: url, path: local})
			log.WithField("url", url).Debug("Resolved file")
			return url, nil
		}

		log.WithField("attempt", attempt).Debug("File not ready, retrying")
	}

	if lastErr == nil {
		lastErr = apperrors.New(apperrors.ErrCodeFileDownload, "file did not finish downloading")
	}
	a.cacheFile(fileID, &fileResolution{failed: true})
	return "", lastErr
}

// ResolveBatch resolves several files concurrently. Individual failures
// are logged and cached; the batch itself never fails.
func (a *Adapter) ResolveBatch(ctx context.Context, fileIDs []int64, kind artifactKind) {
	var pending []int64
	for _, id := range fileIDs {
		if _, ok := a.cachedFile(id); !ok {
			pending = append(pending, id)
		}
	}
	if len(pending) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, id := range pending {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			if _, err := a.Resolve(ctx, id, kind); err != nil {
				a.logger.WithError(err).WithField("file_id", id).Debug("Batch file resolution failed")
			}
		}(id)
	}
	wg.Wait()
}

// materialize copies or converts the engine-local file into the session
// artifact directory and returns its public URL plus local path. Voice
// notes are converted to WAV so clients can play them directly.
func (a *Adapter) materialize(ctx context.Context, srcPath string, kind artifactKind) (string, string, error) {
	base := filepath.Base(srcPath)
	dstDir := filepath.Join(a.cfg.SessionPath, kind.dir())

	var dstName string
	if kind == artifactVoice {
		dstName = replaceExt(base, ".wav")
		dstPath := filepath.Join(dstDir, dstName)
		srcFormat, err := audio.DetectFileFormat(srcPath)
		if err != nil {
			return "", "", apperrors.Wrap(err, apperrors.ErrCodeFileDownload, "failed to read voice artifact")
		}
		if err := a.cfg.Transcoder.Transcode(ctx, srcPath, srcFormat, dstPath, audio.FormatWAV, ""); err != nil {
			return "", "", apperrors.Wrap(err, apperrors.ErrCodeAudioConversion, "failed to convert voice artifact")
		}
		return a.artifactURL(kind, dstName), dstPath, nil
	}

	dstName = base
	dstPath := filepath.Join(dstDir, dstName)
	if err := copyFile(srcPath, dstPath); err != nil {
		return "", "", apperrors.Wrap(err, apperrors.ErrCodeFileDownload, "failed to copy artifact")
	}
	return a.artifactURL(kind, dstName), dstPath, nil
}

// artifactURL builds the download URL served by the gateway's file
// routes. The account id rides along so callers can prove ownership.
func (a *Adapter) artifactURL(kind artifactKind, name string) string {
	return fmt.Sprintf("%s/files/%s/%s/%s?account_id=%s",
		a.cfg.PublicBaseURL, a.cfg.SessionKey, kind.dir(), name, url.QueryEscape(a.cfg.AccountID))
}

func replaceExt(name, ext string) string {
	old := filepath.Ext(name)
	return name[:len(name)-len(old)] + ext
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) // #nosec G304 - engine-provided path inside its own data dir
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600) // #nosec G304
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
