package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/pricetag/internal/importer"
	"github.com/hitoshi/pricetag/internal/itemstore"
	"github.com/hitoshi/pricetag/internal/middleware"
	"github.com/hitoshi/pricetag/internal/model"
	"github.com/hitoshi/pricetag/internal/pdf"
	"github.com/hitoshi/pricetag/internal/settings"
	"github.com/hitoshi/pricetag/internal/workspace"
)

// maxJSONBody はJSONリクエストボディの上限。
const maxJSONBody = 1 << 20

// validate はリクエスト構造体の検証に使う共有インスタンス。
// フィールド名はJSONタグ名で報告する。
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON はボディをJSONとして読み込み、validateタグで検証する。
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) *model.APIError {
	return decodeJSONLimited(w, r, dst, maxJSONBody)
}

// decodeJSONLimited はサイズ上限を指定してdecodeJSONと同じ処理を行う。
func decodeJSONLimited(w http.ResponseWriter, r *http.Request, dst any, limit int64) *model.APIError {
	body := http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return model.NewPayloadTooLargeError(tooLarge.Limit)
		}
		if errors.Is(err, io.EOF) {
			return model.NewInvalidRequestError("リクエストボディが空です")
		}
		return model.NewInvalidRequestError("JSONの解析に失敗しました")
	}
	if err := validate.Struct(dst); err != nil {
		return validationAPIError(err)
	}
	return nil
}

// readRawBody はボディをそのまま読み込む。テーマJSONなど形式を自前で検証する入力に使う。
func readRawBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, *model.APIError) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, model.NewPayloadTooLargeError(tooLarge.Limit)
		}
		return nil, model.NewInvalidRequestError("リクエストボディの読み込みに失敗しました")
	}
	return data, nil
}

// validationAPIError は検証エラーの先頭1件をAPIErrorに変換する。
func validationAPIError(err error) *model.APIError {
	var ves validator.ValidationErrors
	if errors.As(err, &ves) && len(ves) > 0 {
		fe := ves[0]
		return model.NewInvalidRequestError(fmt.Sprintf("%s は %s の条件を満たしていません", fieldPath(fe), fe.Tag()))
	}
	return model.NewInvalidRequestError(err.Error())
}

// fieldPath はルート構造体名を除いたフィールドパスを返す。
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

// writeJSON は成功レスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	middleware.WriteJSON(w, statusCode, v)
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
}

// handleServiceError はドメイン層から返されたエラーを適切なHTTPレスポンスに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	if apiErr := toAPIError(err); apiErr != nil {
		writeAPIErrorResponse(w, apiErr)
		return
	}

	// 既知のエラーでなければ内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// toAPIError はセンチネルエラーをAPIErrorに変換する。該当しない場合はnil。
func toAPIError(err error) *model.APIError {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return model.NewPayloadTooLargeError(tooLarge.Limit)
	}

	switch {
	case errors.Is(err, workspace.ErrNotFound):
		return model.NewWorkspaceNotFoundError("")
	case errors.Is(err, itemstore.ErrInvalidField):
		return model.NewInvalidFieldError(trimSentinel(err, itemstore.ErrInvalidField))
	case errors.Is(err, itemstore.ErrInvalidValue):
		return model.NewInvalidValueError("value", trimSentinel(err, itemstore.ErrInvalidValue))
	case errors.Is(err, settings.ErrInvalidSetting):
		return model.NewInvalidSettingError(trimSentinel(err, settings.ErrInvalidSetting))
	case errors.Is(err, importer.ErrNoRows):
		return model.NewImportEmptyError(0)
	case errors.Is(err, importer.ErrUnsupportedFormat):
		return model.NewImportFailedError(err.Error())
	case errors.Is(err, importer.ErrInvalidSheetURL):
		return model.NewInvalidSheetURLError(trimSentinel(err, importer.ErrInvalidSheetURL))
	case errors.Is(err, importer.ErrBlockedURL):
		return model.NewSSRFBlockedError()
	case errors.Is(err, importer.ErrFetchFailed), errors.Is(err, importer.ErrTooLarge):
		return model.NewFetchFailedError(err.Error())
	case errors.Is(err, pdf.ErrNotConfigured):
		return model.NewPDFNotConfiguredError()
	case errors.Is(err, pdf.ErrRenderFailed):
		return model.NewPDFFailedError(trimSentinel(err, pdf.ErrRenderFailed))
	}
	return nil
}

// trimSentinel は "sentinel: detail" 形式のメッセージから詳細部分を取り出す。
func trimSentinel(err, sentinel error) string {
	msg := err.Error()
	if detail, ok := strings.CutPrefix(msg, sentinel.Error()+": "); ok {
		return detail
	}
	return msg
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidRequest, model.ErrCodeInvalidField, model.ErrCodeInvalidValue,
		model.ErrCodeInvalidSheetURL, model.ErrCodeInvalidPageFormat:
		return http.StatusBadRequest
	case model.ErrCodeWorkspaceNotFound, model.ErrCodeItemNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidTheme, model.ErrCodeInvalidSetting,
		model.ErrCodeImportEmpty, model.ErrCodeImportFailed:
		return http.StatusUnprocessableEntity
	case model.ErrCodeSSRFBlocked:
		return http.StatusForbidden
	case model.ErrCodeFetchFailed, model.ErrCodePDFFailed:
		return http.StatusBadGateway
	case model.ErrCodePDFNotConfigured:
		return http.StatusServiceUnavailable
	case model.ErrCodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}
