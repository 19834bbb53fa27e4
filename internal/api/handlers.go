package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ivlev/topic2video/internal/errs"
	"github.com/ivlev/topic2video/internal/scenes"
	"github.com/ivlev/topic2video/internal/system"
)

const maxUploadSize = 200 << 20

func bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		writeError(c, errs.Validation("decode request", "%v", err))
		return false
	}
	return true
}

func indexParam(c *gin.Context) (int, bool) {
	i, err := strconv.Atoi(c.Param("index"))
	if err != nil || i < 0 {
		writeError(c, errs.Validation("index", "invalid index %q", c.Param("index")))
		return 0, false
	}
	return i, true
}

func (s *Server) getScript(c *gin.Context) {
	text, err := s.app.Workspace.LoadScript()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"script": text})
}

func (s *Server) putScript(c *gin.Context) {
	var body struct {
		Script string `json:"script"`
	}
	if !bind(c, &body) {
		return
	}
	if err := s.app.Workspace.SaveScript(body.Script); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) getPrompts(c *gin.Context) {
	prompts, err := s.app.Workspace.LoadPrompts()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"prompts": prompts})
}

func (s *Server) buildCaptions(c *gin.Context) {
	var body struct {
		Text          string  `json:"text"`
		TargetMinutes float64 `json:"targetMinutes"`
	}
	if !bind(c, &body) {
		return
	}
	tl, err := s.app.BuildCaptions(body.Text, body.TargetMinutes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"path":         s.app.Config.Paths.Captions,
		"blocks":       tl.Blocks,
		"blockCount":   len(tl.Blocks),
		"totalSeconds": tl.TotalSeconds,
		"maxChars":     tl.MaxChars,
	})
}

func (s *Server) captionInfo(c *gin.Context) {
	info, err := s.app.CaptionInfo()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": info.Available, "info": info})
}

func (s *Server) editCaption(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	var body struct {
		Text string `json:"text"`
	}
	if !bind(c, &body) {
		return
	}
	info, err := s.app.EditCaption(index, body.Text)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "info": info})
}

func (s *Server) listScenes(c *gin.Context) {
	doc, err := s.app.Store.Load(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) saveScenes(c *gin.Context) {
	var body struct {
		Scenes []scenes.Scene `json:"scenes"`
	}
	if !bind(c, &body) {
		return
	}
	if body.Scenes == nil {
		writeError(c, errs.Validation("save scenes", "scenes must be an array"))
		return
	}
	ctx := c.Request.Context()
	doc, err := s.app.Store.Load(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	doc.Scenes = body.Scenes
	if err := s.app.Store.Save(ctx, doc); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "saved": len(doc.Scenes), "document": doc})
}

func (s *Server) redistribute(c *gin.Context) {
	var body struct {
		TotalSeconds float64 `json:"totalSeconds"`
	}
	if !bind(c, &body) {
		return
	}
	doc, err := s.app.RedistributeScenes(c.Request.Context(), body.TotalSeconds)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "document": doc})
}

func (s *Server) updateScene(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	var patch scenes.Patch
	if !bind(c, &patch) {
		return
	}
	doc, err := s.app.Store.UpdateOne(c.Request.Context(), index, patch)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "document": doc})
}

func (s *Server) deleteScene(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	doc, err := s.app.Store.DeleteOne(c.Request.Context(), index)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "document": doc})
}

func (s *Server) frame(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	doc, err := s.app.Store.Load(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if index >= len(doc.Scenes) || doc.Scenes[index].FramePath == "" {
		writeError(c, fmt.Errorf("frame: %w: scene %d has no frame", errs.ErrNotFound, index))
		return
	}
	path, ok := insideDir(s.app.Config.Paths.FramesDir, doc.Scenes[index].FramePath)
	if !ok {
		writeError(c, errs.NotFound("frame", doc.Scenes[index].FramePath))
		return
	}
	if fi, err := os.Stat(path); err != nil || fi.IsDir() {
		writeError(c, errs.NotFound("frame", path))
		return
	}

	mime := "image/jpeg"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		mime = "image/png"
	case ".webp":
		mime = "image/webp"
	}
	c.Header("Content-Type", mime)
	c.File(path)
}

// insideDir resolves path, following symlinks, and reports whether it lies
// under dir.
func insideDir(dir, path string) (string, bool) {
	root, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return "", false
	}
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", false
	}
	if root, err = filepath.Abs(root); err != nil {
		return "", false
	}
	if resolved, err = filepath.Abs(resolved); err != nil {
		return "", false
	}
	rel, err := filepath.Rel(root, resolved)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return resolved, true
}

func (s *Server) requestImages(c *gin.Context) {
	var body struct {
		Prompts []string `json:"prompts"`
	}
	if !bind(c, &body) {
		return
	}
	req, ack, err := s.app.RequestImages(c.Request.Context(), body.Prompts)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": ack.Accepted, "request": req, "ack": ack})
}

func (s *Server) importImages(c *gin.Context) {
	var body struct {
		Wait *bool `json:"wait"`
	}
	if c.Request.ContentLength > 0 && !bind(c, &body) {
		return
	}
	wait := body.Wait == nil || *body.Wait
	res, err := s.app.ImportImages(c.Request.Context(), wait)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "result": res})
}

func (s *Server) uploadAudio(c *gin.Context) {
	if err := c.Request.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(c, errs.Validation("upload audio", "form too large or malformed: %v", err))
		return
	}
	file, err := c.FormFile("audio")
	if err != nil {
		writeError(c, errs.Validation("upload audio", "no file in field 'audio'"))
		return
	}
	if !system.HasExtension(file.Filename, system.AudioExtensions) {
		writeError(c, errs.Validation("upload audio", "unsupported audio format %q", filepath.Ext(file.Filename)))
		return
	}

	name := uuid.NewString() + strings.ToLower(filepath.Ext(file.Filename))
	dst := filepath.Join(s.app.Config.Paths.UploadsDir, name)
	if err := os.MkdirAll(s.app.Config.Paths.UploadsDir, 0755); err != nil {
		writeError(c, err)
		return
	}
	if err := c.SaveUploadedFile(file, dst); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "path": dst, "originalName": file.Filename})
}

func (s *Server) trimAudio(c *gin.Context) {
	var body struct {
		AudioPath string `json:"audioPath"`
	}
	if !bind(c, &body) {
		return
	}
	info, err := s.app.TrimAudio(c.Request.Context(), body.AudioPath)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "info": info})
}

func (s *Server) audioInfo(c *gin.Context) {
	info, err := s.app.AudioInfo()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": info != nil, "info": info})
}

func (s *Server) render(c *gin.Context) {
	var body struct {
		AudioPath string `json:"audioPath"`
		Out       string `json:"out"`
	}
	if !bind(c, &body) {
		return
	}
	out, err := s.app.Render(c.Request.Context(), body.AudioPath, body.Out)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "path": out})
}

func (s *Server) clean(c *gin.Context) {
	report, err := s.app.Workspace.Clean()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "report": report})
}
