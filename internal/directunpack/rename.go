package directunpack

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/jvz-devx/usenet-dl-sub002/internal/domain"
	"github.com/jvz-devx/usenet-dl-sub002/internal/par2meta"
)

// applyRenames matches newly completed files (and, on the tick the PAR2
// descriptions first become available, every previously completed file)
// against the parsed 16 KiB MD5 hashes, renaming on match. PAR2 files
// themselves are never candidates.
func (c *Coordinator) applyRenames(ctx context.Context, id domain.DownloadID, newly []domain.File, st *state) {
	if !st.descParsed || len(st.descriptions) == 0 {
		return
	}

	candidates := newly
	if !st.renameBacklogDone {
		all, err := c.Store.GetDownloadFiles(ctx, id)
		if err == nil {
			candidates = all
		}
		st.renameBacklogDone = true
	}

	for _, f := range candidates {
		if !f.Completed || strings.EqualFold(filepath.Ext(f.Filename), ".par2") {
			continue
		}
		match, ok := c.matchDescription(id, f, st.descriptions)
		if !ok || match.Filename == f.Filename {
			continue
		}
		oldPath, newPath := c.filePath(id, f.Filename), c.filePath(id, match.Filename)
		if err := os.Rename(oldPath, newPath); err != nil {
			continue
		}
		if err := c.Store.RenameFile(ctx, id, f.FileIndex, match.Filename); err != nil {
			_ = os.Rename(newPath, oldPath)
			continue
		}
		c.publish(id, domain.EventDirectRenamed, domain.DirectRenamedPayload{
			FileIndex: f.FileIndex, OldName: f.Filename, NewName: match.Filename,
		})
	}
}

func (c *Coordinator) matchDescription(id domain.DownloadID, f domain.File, descriptions []par2meta.FileEntry) (par2meta.FileEntry, bool) {
	path := c.filePath(id, f.Filename)
	hash, err := par2meta.Compute16KMD5(path)
	if err != nil {
		return par2meta.FileEntry{}, false
	}
	for _, d := range descriptions {
		if d.Hash16K == hash {
			return d, true
		}
	}
	return par2meta.FileEntry{}, false
}
