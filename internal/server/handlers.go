package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/shouni/gemini-brand-kit/pkg/controller"
	"github.com/shouni/gemini-brand-kit/pkg/domain"
	"github.com/shouni/gemini-brand-kit/pkg/imgutil"

	"github.com/gin-gonic/gin"
)

const (
	ctxKeyController = "controller"
	uploadFormField  = "file"
)

// stateResponse は画面描画に必要な状態です。画像はデータURIで返します。
type stateResponse struct {
	controller.State
	Phase        controller.Phase `json:"phase"`
	Image        string           `json:"image,omitempty"`
	HasReference bool             `json:"has_reference"`
	MaxRoles     int              `json:"max_roles"`
}

func newStateResponse(st controller.State) stateResponse {
	resp := stateResponse{
		State:        st,
		Phase:        st.Phase(),
		HasReference: !st.Reference.IsEmpty(),
		MaxRoles:     domain.MaxRoles,
	}
	if !st.Current.IsEmpty() {
		resp.Image = st.Current.DataURI()
	}
	return resp
}

type viewRequest struct {
	View controller.View `json:"view" binding:"required"`
}

type textRequest struct {
	Value string `json:"value"`
}

type roleRequest struct {
	Label string `json:"label" binding:"required"`
}

type referenceRequest struct {
	DataURI string `json:"data_uri"`
	URL     string `json:"url"`
}

type editRequest struct {
	Refinement string `json:"refinement"`
}

// withSession は Cookie に対応する Controller を解決してコンテキストに載せるのだ。
func (s *Server) withSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctrl, err := s.sessions.Resolve(c)
		if err != nil {
			slog.ErrorContext(c.Request.Context(), "セッションを解決できませんでした", "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session unavailable"})
			return
		}
		c.Set(ctxKeyController, ctrl)
		c.Next()
	}
}

func sessionController(c *gin.Context) *controller.Controller {
	return c.MustGet(ctxKeyController).(*controller.Controller)
}

func respondState(c *gin.Context, ctrl *controller.Controller) {
	c.JSON(http.StatusOK, newStateResponse(ctrl.Snapshot()))
}

func (s *Server) index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"Presets":  domain.PresetRoles,
		"MaxRoles": domain.MaxRoles,
	})
}

func (s *Server) getState(c *gin.Context) {
	respondState(c, sessionController(c))
}

func (s *Server) getPresets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"presets": domain.PresetRoles})
}

func (s *Server) setView(c *gin.Context) {
	var req viewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.View != controller.ViewLanding && req.View != controller.ViewGenerator {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown view: %s", req.View)})
		return
	}
	ctrl := sessionController(c)
	ctrl.SetView(req.View)
	respondState(c, ctrl)
}

func (s *Server) setName(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctrl := sessionController(c)
	ctrl.SetName(req.Value)
	respondState(c, ctrl)
}

func (s *Server) setStyle(c *gin.Context) {
	var req textRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctrl := sessionController(c)
	ctrl.SetStyleHint(req.Value)
	respondState(c, ctrl)
}

// addRole は上限や重複で無視されても 200 で現在の状態を返します。
func (s *Server) addRole(c *gin.Context) {
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctrl := sessionController(c)
	ctrl.AddRole(req.Label)
	respondState(c, ctrl)
}

func (s *Server) removeRole(c *gin.Context) {
	ctrl := sessionController(c)
	ctrl.RemoveRole(c.Param("id"))
	respondState(c, ctrl)
}

func (s *Server) clearRoles(c *gin.Context) {
	ctrl := sessionController(c)
	ctrl.ClearRoles()
	respondState(c, ctrl)
}

func (s *Server) moveRole(up bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		index, err := strconv.Atoi(c.Param("index"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "index must be an integer"})
			return
		}
		ctrl := sessionController(c)
		if up {
			ctrl.MoveRoleUp(index)
		} else {
			ctrl.MoveRoleDown(index)
		}
		respondState(c, ctrl)
	}
}

// setReference は multipart のファイル、データURI、URL のいずれかで参照写真を受け取ります。
func (s *Server) setReference(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes)

	img, err := s.readReference(c)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "reference image is too large"})
			return
		}
		slog.WarnContext(c.Request.Context(), "参照写真を受け付けませんでした", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctrl := sessionController(c)
	ctrl.SetReference(img)
	respondState(c, ctrl)
}

func (s *Server) readReference(c *gin.Context) (domain.EncodedImage, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile(uploadFormField)
		if err != nil {
			return domain.EncodedImage{}, fmt.Errorf("アップロードファイルがありません: %w", err)
		}
		f, err := fh.Open()
		if err != nil {
			return domain.EncodedImage{}, err
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return domain.EncodedImage{}, err
		}
		return imgutil.DetectImage(data)
	}

	var req referenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return domain.EncodedImage{}, err
	}
	switch {
	case req.DataURI != "":
		parsed, err := domain.ParseDataURI(req.DataURI)
		if err != nil {
			return domain.EncodedImage{}, err
		}
		// 宣言された MIME タイプは信用せず中身から判定する
		return imgutil.DetectImage(parsed.Data)
	case req.URL != "":
		if s.references == nil {
			return domain.EncodedImage{}, fmt.Errorf("URL による参照写真の指定は無効です")
		}
		img, err := s.references.FetchReference(c.Request.Context(), req.URL)
		if err != nil {
			return domain.EncodedImage{}, err
		}
		return *img, nil
	default:
		return domain.EncodedImage{}, fmt.Errorf("file, data_uri, url のいずれかが必要です")
	}
}

func (s *Server) clearReference(c *gin.Context) {
	ctrl := sessionController(c)
	ctrl.ClearReference()
	respondState(c, ctrl)
}

func (s *Server) generate(c *gin.Context) {
	ctrl := sessionController(c)
	if err := ctrl.RequestGenerate(c.Request.Context()); err != nil {
		respondIntentError(c, ctrl, err)
		return
	}
	respondState(c, ctrl)
}

func (s *Server) edit(c *gin.Context) {
	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctrl := sessionController(c)
	ctrl.SetRefinement(req.Refinement)
	if err := ctrl.RequestEdit(c.Request.Context(), req.Refinement); err != nil {
		respondIntentError(c, ctrl, err)
		return
	}
	respondState(c, ctrl)
}

// respondIntentError は生成・編集の失敗を HTTP ステータスに対応付けます。
// リモート側の原因はログにだけ残し、レスポンスには固定メッセージを載せます。
func respondIntentError(c *gin.Context, ctrl *controller.Controller, err error) {
	st := ctrl.Snapshot()
	status := http.StatusInternalServerError
	message := st.LastError

	switch {
	case errors.Is(err, controller.ErrBusy):
		status = http.StatusConflict
		message = err.Error()
	case errors.Is(err, domain.ErrValidationFailed):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrGenerationFailed):
		status = http.StatusBadGateway
	}
	if message == "" {
		message = http.StatusText(status)
	}

	c.JSON(status, gin.H{"error": message, "state": newStateResponse(st)})
}

func (s *Server) download(c *gin.Context) {
	fileName, img, ok := sessionController(c).Download()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no image has been generated yet"})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	c.Data(http.StatusOK, img.MimeType, img.Data)
}
