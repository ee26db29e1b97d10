// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, import, render, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeWorkspaceNotFound = "WORKSPACE_NOT_FOUND"
	ErrCodeItemNotFound      = "ITEM_NOT_FOUND"
	ErrCodeInvalidField      = "INVALID_FIELD"
	ErrCodeInvalidValue      = "INVALID_VALUE"
	ErrCodeInvalidTheme      = "INVALID_THEME"
	ErrCodeInvalidSetting    = "INVALID_SETTING"
	ErrCodeImportEmpty       = "IMPORT_EMPTY"
	ErrCodeImportFailed      = "IMPORT_FAILED"
	ErrCodeInvalidSheetURL   = "INVALID_SHEET_URL"
	ErrCodeSSRFBlocked       = "SSRF_BLOCKED"
	ErrCodeFetchFailed       = "FETCH_FAILED"
	ErrCodeInvalidPageFormat = "INVALID_PAGE_FORMAT"
	ErrCodeRenderFailed      = "RENDER_FAILED"
	ErrCodePDFNotConfigured  = "PDF_NOT_CONFIGURED"
	ErrCodePDFFailed         = "PDF_FAILED"
	ErrCodePayloadTooLarge   = "PAYLOAD_TOO_LARGE"
)

// NewInvalidRequestError はリクエスト形式エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "正しいJSON形式と必須フィールドを確認してください。",
	}
}

// NewWorkspaceNotFoundError はワークスペース未検出エラーを生成する。
func NewWorkspaceNotFoundError(workspaceID string) *APIError {
	return &APIError{
		Code:     ErrCodeWorkspaceNotFound,
		Message:  fmt.Sprintf("指定されたワークスペースが見つかりません: %s", workspaceID),
		Category: "validation",
		Action:   "新しいワークスペースを作成してください。",
	}
}

// NewItemNotFoundError は商品未検出エラーを生成する。
func NewItemNotFoundError(itemID string) *APIError {
	return &APIError{
		Code:     ErrCodeItemNotFound,
		Message:  fmt.Sprintf("指定された商品が見つかりません: %s", itemID),
		Category: "validation",
		Action:   "商品一覧を再読み込みしてください。",
	}
}

// NewInvalidFieldError は更新対象フィールドが不正な場合のエラーを生成する。
func NewInvalidFieldError(field string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidField,
		Message:  fmt.Sprintf("更新できないフィールドです: %s", field),
		Category: "validation",
		Action:   "data、price、designType、hasDiscount、priceFor2、priceFrom3 のいずれかを指定してください。",
	}
}

// NewInvalidValueError はフィールド値が不正な場合のエラーを生成する。
func NewInvalidValueError(field, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidValue,
		Message:  fmt.Sprintf("%s の値が不正です: %s", field, reason),
		Category: "validation",
		Action:   "価格は0より大きい数値を指定してください。",
	}
}

// NewInvalidThemeError はテーマ定義が不正な場合のエラーを生成する。
func NewInvalidThemeError(key string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTheme,
		Message:  fmt.Sprintf("テーマ定義が不正です: %s", key),
		Category: "validation",
		Action:   "start、end、textColor を #rrggbb 形式（16進数6桁）で指定してください。",
	}
}

// NewInvalidSettingError は設定値が不正な場合のエラーを生成する。
func NewInvalidSettingError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSetting,
		Message:  fmt.Sprintf("設定値が不正です: %s", reason),
		Category: "validation",
		Action:   "割引額は0以上、上限割引率は0から100の範囲で指定してください。",
	}
}

// NewImportEmptyError は有効な行が1件もなかった場合のエラーを生成する。
func NewImportEmptyError(rejected int) *APIError {
	return &APIError{
		Code:     ErrCodeImportEmpty,
		Message:  fmt.Sprintf("取り込める行がありませんでした（除外: %d行）", rejected),
		Category: "import",
		Action:   "商品名と0より大きい価格の列が含まれているか確認してください。",
	}
}

// NewImportFailedError はファイル解析失敗エラーを生成する。
func NewImportFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeImportFailed,
		Message:  fmt.Sprintf("ファイルの読み込みに失敗しました: %s", reason),
		Category: "import",
		Action:   "CSV、Excel（.xlsx）または表形式のテキストを指定してください。",
	}
}

// NewInvalidSheetURLError はGoogleスプレッドシートURLが不正な場合のエラーを生成する。
func NewInvalidSheetURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSheetURL,
		Message:  fmt.Sprintf("GoogleスプレッドシートのURLが不正です: %s", reason),
		Category: "validation",
		Action:   "https://docs.google.com/spreadsheets/d/... 形式の共有URLを入力してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているGoogleスプレッドシートのURLを入力してください。",
	}
}

// NewFetchFailedError はシート取得失敗エラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("スプレッドシートの取得に失敗しました: %s", reason),
		Category: "import",
		Action:   "シートが「リンクを知っている全員」に公開されているか確認してください。",
	}
}

// NewInvalidPageFormatError は用紙サイズ指定が不正な場合のエラーを生成する。
func NewInvalidPageFormatError(format string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPageFormat,
		Message:  fmt.Sprintf("無効な用紙サイズです: %s", format),
		Category: "validation",
		Action:   "用紙サイズには A4、A3、Letter のいずれかを指定してください。",
	}
}

// NewRenderFailedError は値札HTML生成失敗エラーを生成する。
func NewRenderFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeRenderFailed,
		Message:  "値札の生成に失敗しました。",
		Category: "render",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewPDFNotConfiguredError はPDFレンダラー未設定エラーを生成する。
func NewPDFNotConfiguredError() *APIError {
	return &APIError{
		Code:     ErrCodePDFNotConfigured,
		Message:  "PDF出力は現在利用できません。",
		Category: "render",
		Action:   "HTML出力をブラウザから印刷してください。",
	}
}

// NewPDFFailedError はPDF生成失敗エラーを生成する。
func NewPDFFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodePDFFailed,
		Message:  fmt.Sprintf("PDFの生成に失敗しました: %s", reason),
		Category: "render",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewPayloadTooLargeError はアップロードサイズ超過エラーを生成する。
func NewPayloadTooLargeError(limit int64) *APIError {
	return &APIError{
		Code:     ErrCodePayloadTooLarge,
		Message:  fmt.Sprintf("アップロードサイズが上限（%dバイト）を超えています。", limit),
		Category: "validation",
		Action:   "ファイルを分割してから再度お試しください。",
	}
}
