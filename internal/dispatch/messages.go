package dispatch

import (
	"errors"
	"strings"

	"dailytales/internal/delivery"
)

const (
	LangEN = "en"
	LangAR = "ar"
)

type text struct{ en, ar string }

var (
	msgSent         = text{"Sent successfully", "تم الإرسال بنجاح"}
	msgValidation   = text{"Invalid request", "طلب غير صالح"}
	msgNoSettings   = text{"Configure the Telegram settings first", "يرجى إعداد إعدادات تلجرام أولاً"}
	msgNoChatID     = text{"Set the destination chat id first", "يرجى تحديد معرف القناة أولاً"}
	msgCredentials  = text{"Add a bot token or a complete session (api id, api hash, session string)", "يرجى إضافة توكن البوت أو بيانات الجلسة كاملة"}
	msgAutoDisabled = text{"Auto send is disabled", "الإرسال التلقائي غير مفعل"}
	msgRejected     = text{"Telegram rejected the message", "رفض تلجرام الرسالة"}
	msgNetwork      = text{"Could not reach Telegram, try again", "تعذر الاتصال بتلجرام، حاول مرة أخرى"}
	msgInternal     = text{"Unexpected error", "خطأ غير متوقع"}
	msgPersistence  = text{"Sent, but the history could not be saved", "تم الإرسال لكن تعذر حفظ السجل"}
)

func (t text) in(lang string) string {
	if strings.EqualFold(lang, LangAR) {
		return t.ar
	}
	return t.en
}

// SuccessMessage is the short confirmation for a finished dispatch.
func SuccessMessage(res Result, lang string) string {
	if res.Warning == WarningPersistence {
		return msgPersistence.in(lang)
	}
	return msgSent.in(lang)
}

// UserMessage maps any error to a short localized category message.
// Only validation messages carry detail; remote and internal causes never do.
func UserMessage(err error, lang string) string {
	if err == nil {
		return ""
	}
	var de *Error
	if !errors.As(err, &de) {
		return msgInternal.in(lang)
	}
	switch de.Kind {
	case KindValidation:
		if de.Reason != "" {
			return msgValidation.in(lang) + ": " + de.Reason
		}
		return msgValidation.in(lang)
	case KindConfiguration:
		switch {
		case errors.Is(de.Err, ErrAutoDisabled):
			return msgAutoDisabled.in(lang)
		case errors.Is(de.Err, ErrNoChatID):
			return msgNoChatID.in(lang)
		case errors.Is(de.Err, delivery.ErrMissingCredentials):
			return msgCredentials.in(lang)
		default:
			return msgNoSettings.in(lang)
		}
	case KindDelivery:
		if delivery.Reason(de.Reason) == delivery.ReasonNetworkFailure {
			return msgNetwork.in(lang)
		}
		return msgRejected.in(lang)
	default:
		return msgInternal.in(lang)
	}
}
