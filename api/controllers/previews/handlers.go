package previews

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/loomline/designvault/api/middleware"
	"github.com/loomline/designvault/api/responses"
	"github.com/loomline/designvault/api/validators"
	previewsvc "github.com/loomline/designvault/internal/previews"
	"github.com/loomline/designvault/pkg/enums"
	pkgerrors "github.com/loomline/designvault/pkg/errors"
	"github.com/loomline/designvault/pkg/logger"
)

// multipart framing on top of the image itself
const multipartSlack = 1 << 20

type createRequest struct {
	Width    int    `json:"width" validate:"gt=0"`
	Height   int    `json:"height" validate:"gt=0"`
	Color    string `json:"color" validate:"omitempty,max=16"`
	ViewMode string `json:"view_mode" validate:"omitempty,oneof=design worksheet"`
}

type colorRequest struct {
	Color string `json:"color" validate:"required,max=16"`
}

type designRequest struct {
	DesignNo string `json:"design_no" validate:"required,max=64"`
	ViewMode string `json:"view_mode" validate:"omitempty,oneof=design worksheet"`
}

type moveRequest struct {
	X *float64 `json:"x" validate:"required"`
	Y *float64 `json:"y" validate:"required"`
}

type scaleRequest struct {
	ScaleX *float64 `json:"scale_x" validate:"required"`
	ScaleY *float64 `json:"scale_y" validate:"required"`
}

// sessionAction is the shape shared by every operation that mutates a
// session and answers with its new view.
type sessionAction func(ctx context.Context, userID, id uuid.UUID, r *http.Request) (*previewsvc.SessionView, error)

func handle(svc previewsvc.Service, logg *logger.Logger, action sessionAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "preview service unavailable"))
			return
		}
		userID, err := middleware.RequireUserUUID(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		id, err := validators.ParseUUIDParam(r, "previewId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			ctx = logg.WithSessionID(ctx, id.String())
		}
		view, err := action(ctx, userID, id, r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func Create(svc previewsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "preview service unavailable"))
			return
		}
		userID, err := middleware.RequireUserUUID(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var payload createRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		view, err := svc.Create(ctx, userID, previewsvc.CreateInput{
			Width:    payload.Width,
			Height:   payload.Height,
			Color:    payload.Color,
			ViewMode: enums.ViewMode(payload.ViewMode),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

func Get(svc previewsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, func(ctx context.Context, userID, id uuid.UUID, _ *http.Request) (*previewsvc.SessionView, error) {
		return svc.Get(ctx, userID, id)
	})
}

// Render streams the current composite as a PNG.
func Render(svc previewsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "preview service unavailable"))
			return
		}
		userID, err := middleware.RequireUserUUID(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		id, err := validators.ParseUUIDParam(r, "previewId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		img, err := svc.Render(ctx, userID, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		if err := imaging.Encode(w, img, imaging.PNG); err != nil && logg != nil {
			logg.Error(ctx, "preview.render.encode", err)
		}
	}
}

// PagePDF serves the worksheet page the session is showing as a
// single-page PDF.
func PagePDF(svc previewsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "preview service unavailable"))
			return
		}
		userID, err := middleware.RequireUserUUID(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		id, err := validators.ParseUUIDParam(r, "previewId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		data, page, err := svc.PagePDF(ctx, userID, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("X-Page-Number", strconv.Itoa(page))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(data); err != nil && logg != nil {
			logg.Error(ctx, "preview.page.write", err)
		}
	}
}

func Close(svc previewsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "preview service unavailable"))
			return
		}
		userID, err := middleware.RequireUserUUID(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		id, err := validators.ParseUUIDParam(r, "previewId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := svc.Close(ctx, userID, id); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

func SetColor(svc previewsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, func(ctx context.Context, userID, id uuid.UUID, r *http.Request) (*previewsvc.SessionView, error) {
		var payload colorRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.SetColor(ctx, userID, id, payload.Color)
	})
}

// SetImage reads the background from the multipart "image" field.
func SetImage(svc previewsvc.Service, maxBytes int64, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, func(ctx context.Context, userID, id uuid.UUID, r *http.Request) (*previewsvc.SessionView, error) {
		if maxBytes > 0 {
			r.Body = http.MaxBytesReader(nil, r.Body, maxBytes+multipartSlack)
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, pkgerrors.New(pkgerrors.CodeTooLarge, "background image exceeds the upload limit")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "multipart field \"image\" is required")
		}
		defer file.Close()
		return svc.SetImage(ctx, userID, id, previewsvc.ImageInput{
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Body:        file,
		})
	})
}

func StartWebcam(svc previewsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, func(ctx context.Context, userID, id uuid.UUID, _ *http.Request) (*previewsvc.SessionView, error) {
		return svc.StartWebcam(ctx, userID, id)
	})
}

func StopWebcam(svc previewsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, func(ctx context.Context, userID, id uuid.UUID, _ *http.Request) (*previewsvc.SessionView, error) {
		return svc.StopWebcam(ctx, userID, id)
	})
}

// PushFrame accepts one raw JPEG or PNG camera frame as the request body.
func PushFrame(svc previewsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "preview service unavailable"))
			return
		}
		userID, err := middleware.RequireUserUUID(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		id, err := validators.ParseUUIDParam(r, "previewId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		err = svc.PushFrame(ctx, userID, id, previewsvc.ImageInput{
			ContentType: r.Header.Get("Content-Type"),
			Size:        r.ContentLength,
			Body:        r.Body,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func LoadDesign(svc previewsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, func(ctx context.Context, userID, id uuid.UUID, r *http.Request) (*previewsvc.SessionView, error) {
		var payload designRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.LoadDesign(ctx, userID, id, previewsvc.LoadInput{
			DesignNo: payload.DesignNo,
			ViewMode: enums.ViewMode(payload.ViewMode),
		})
	})
}

func Move(svc previewsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, func(ctx context.Context, userID, id uuid.UUID, r *http.Request) (*previewsvc.SessionView, error) {
		var payload moveRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.Move(ctx, userID, id, *payload.X, *payload.Y)
	})
}

func Scale(svc previewsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, func(ctx context.Context, userID, id uuid.UUID, r *http.Request) (*previewsvc.SessionView, error) {
		var payload scaleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			return nil, err
		}
		return svc.Scale(ctx, userID, id, *payload.ScaleX, *payload.ScaleY)
	})
}

func NextPage(svc previewsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, func(ctx context.Context, userID, id uuid.UUID, _ *http.Request) (*previewsvc.SessionView, error) {
		return svc.NextPage(ctx, userID, id)
	})
}

func PreviousPage(svc previewsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return handle(svc, logg, func(ctx context.Context, userID, id uuid.UUID, _ *http.Request) (*previewsvc.SessionView, error) {
		return svc.PreviousPage(ctx, userID, id)
	})
}
