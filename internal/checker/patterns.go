package checker

import "strings"

// Las tablas de detección son datos, no lógica: la app automatizada
// cambia sus textos con frecuencia y esto es lo único que hay que
// tocar. Cada categoría es una lista ordenada de substrings; basta
// con que uno aparezca en el volcado de pantalla.
//
// Los fragmentos japoneses están truncados a propósito: la app corta
// los títulos de diálogo según el ancho de pantalla.

// PatternSet agrupa los substrings de una categoría de detección
type PatternSet struct {
	Category   string
	Substrings []string
}

// FraudWarningPatterns detecta el diálogo de advertencia de fraude
// que aparece antes de completar un follow (bilingüe: la locale de la
// app no está bajo nuestro control)
var FraudWarningPatterns = PatternSet{
	Category: "fraud_warning",
	Substrings: []string{
		// Japonés
		"フォローする前にこのア",
		"安全のため",
		"このアカウントについて",
		"利用開始日",
		"アカウント所在地",
		// Inglés
		"Review this account before following",
		"Date joined",
		"Account based in",
		"before you follow them",
	},
}

// PendingPatterns detecta el diálogo "request pending" de cuentas
// privadas o con revisión manual. Es distinto del diálogo de fraude y
// no debe confundirse con él.
var PendingPatterns = PatternSet{
	Category: "pending_request",
	Substrings: []string{
		"Your request is pending",
		"Some accounts prefer to manually review followers",
		"リクエストが保留中です",
		"フォローリクエストが送信されました",
	},
}

// NotFoundPatterns detecta la página de cuenta inexistente. Un match
// aquí es concluyente: no se reintenta la navegación.
var NotFoundPatterns = PatternSet{
	Category: "not_found",
	Substrings: []string{
		"このページはご利用いただけません",
		"Page Not Found",
		"Sorry, this page isn't available",
	},
}

// followingLabels marca el estado "ya siguiendo / solicitado" en la
// ETIQUETA del botón de follow. Nota: "リクエスト済み" solo vive en
// esta lista (texto de botón); PendingPatterns matchea únicamente el
// texto del diálogo a página completa, así que los dos conjuntos son
// disjuntos en su punto de uso.
var followingLabels = []string{
	"Following",
	"フォロー中",
	"Requested",
	"リクエスト済み",
}

// FollowButtonIDs son los resource-id estables del botón de follow,
// en orden de preferencia. Resistentes a localización.
var FollowButtonIDs = []string{
	"com.instagram.android:id/profile_header_follow_button",
	"com.instagram.android:id/profile_header_user_action_follow_button",
}

// FollowButtonTexts es el fallback por texto cuando el resource-id
// no aparece en el árbol de elementos
var FollowButtonTexts = []string{
	"Follow",
	"フォローする",
}

// UnfollowConfirmTexts son los textos del botón de confirmación en el
// diálogo de dejar de seguir
var UnfollowConfirmTexts = []string{
	"フォローをやめる",
	"Unfollow",
}

// PendingOKTexts localizan el botón de cierre del diálogo pending
var PendingOKTexts = []string{
	"OK",
}

// PopupDismissTexts cierran los popups post-login ("guardar info",
// notificaciones, etc.)
var PopupDismissTexts = []string{
	"後で",
	"今はしない",
	"スキップ",
	"Not Now",
	"Skip",
	"OK",
}

// WarningDetailTexts localizan los sub-elementos de detalle dentro
// del diálogo de advertencia, con su prefijo de salida
var WarningDetailTexts = []struct {
	Label    string
	Patterns []string
}{
	{Label: "date joined", Patterns: []string{"利用開始日", "年", "Date joined"}},
	{Label: "location", Patterns: []string{"所在地", "国", "Account based in"}},
}

// Matches retorna true si algún substring del conjunto aparece en el
// texto de pantalla
func (p PatternSet) Matches(screenText string) bool {
	for _, s := range p.Substrings {
		if strings.Contains(screenText, s) {
			return true
		}
	}
	return false
}

// IsFollowingLabel decide si la etiqueta de un botón indica estado
// "siguiendo" o "solicitado"
func IsFollowingLabel(label string) bool {
	for _, s := range followingLabels {
		if strings.Contains(label, s) {
			return true
		}
	}
	return false
}

// HasRecognizableContent decide si la página del perfil cargó: o
// aparece el username, o aparece algún texto de follow
func HasRecognizableContent(screenText, username string) bool {
	if username != "" && strings.Contains(strings.ToLower(screenText), strings.ToLower(username)) {
		return true
	}
	return strings.Contains(screenText, "フォロー") || strings.Contains(screenText, "Follow")
}
