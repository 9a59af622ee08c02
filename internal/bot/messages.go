package bot

import "github.com/MrWong99/speaksmart/internal/chat"

// Reply keyboard labels. A pressed label arrives as a plain message with the
// label as its text.
const (
	BtnNext     = "Next"
	BtnRepeat   = "Repeat"
	BtnExit     = "Exit"
	BtnEscalate = "Escalate to operator"
	BtnBack     = "Back"
)

var (
	practiceKeyboard = chat.Keyboard{{BtnNext, BtnRepeat}, {BtnExit}}
	supportKeyboard  = chat.Keyboard{{BtnEscalate}, {BtnBack}}
	operatorKeyboard = chat.Keyboard{{BtnBack}}
)

const (
	msgStart = "Hi! I'm SpeakSmart.\n\n" +
		"Available commands:\n" +
		"/practice - voice practice\n" +
		"/support - support (FAQ or operator)\n" +
		"/help - help\n" +
		"/cancel - leave the current mode"

	msgHelp = "Help:\n\n" +
		"- /practice: I send a phrase as a voice message and you answer with your voice.\n" +
		"- /support: ask a question and I'll look for an answer in the FAQ.\n" +
		"- /cancel: leave the current mode.\n"

	msgCancelIdle   = "Ok. You weren't in any mode, nothing to reset."
	msgCancelActive = "Ok. Mode cancelled and state reset."

	msgPracticeIntro = "Practice mode on.\n\n" +
		"I'll send a phrase as a voice message. Answer with a voice message.\n" +
		"I don't show the recognised text, only the final feedback."
	msgPracticeLoadFailed = "Couldn't load the practice phrase set."
	msgPracticeEmptyFmt   = "The practice phrase set is empty. Check %s."
	msgPracticeMissingFmt = "I'm ready to start, but there's no audio file for this phrase yet.\n\n" +
		"Expected file: %s\n" +
		"Put the voice prompts into the assets folder and run /practice again."
	msgPracticeExit      = "Ok, leaving Practice."
	msgPracticeNeedVoice = "Send a voice message or use the Next/Repeat/Exit buttons."
	msgPracticeFailed    = "Couldn't process the voice message. Check the ffmpeg and speech recognition setup."

	msgSupportIntro = "Support mode on.\n\n" +
		"Write your question and I'll try to find an answer in the FAQ.\n" +
		"If that doesn't work, I'll offer to pass it to the operator."
	msgSupportExit       = "Ok, leaving Support."
	msgSupportNeedText   = "Send your question as text."
	msgSupportFAQFailed  = "I can't open the FAQ right now. You can pass the question to the operator."
	msgSupportNoAnswer   = "Looks like the FAQ has no exact answer.\n\nPass the question to the operator?"
	msgSupportUseButtons = "Please use the buttons: " + BtnEscalate + " / " + BtnBack + "."
	msgSupportAskAgain   = "Ok. Write your question again and I'll search the FAQ."
	msgSupportNoQuestion = "I don't see the question text. Please write it again."
	msgSupportDelivery   = "I couldn't send the message to the operator.\n\n" +
		"This usually happens when the operator hasn't opened a chat with the bot yet.\n" +
		"Ask the operator to send /start to the bot, then escalate again.\n\n" +
		"If the operator already wrote to the bot, check that the operator id is configured correctly."
	msgEscalatedFmt = "Done. I passed your question to the operator. Ticket number: #%d.\nPlease wait for a reply."

	msgOperatorExit    = "Ok. You left the operator waiting mode."
	msgOperatorWaiting = "I passed your message to the operator. Please wait for a reply.\n" +
		"To leave, press " + BtnBack + "."

	msgInternalError = "Something went wrong on my side. Please try again later."
)
