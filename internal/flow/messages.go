package flow

import (
	"fmt"

	"github.com/gramvikas/kisha/internal/models"
)

// Reply catalog. Hindi and English variants are maintained in parallel for
// every outbound message; the Hindi text matches what the service has always
// said to farmers, so wording changes here are user-visible.

func welcomeText(lang models.Language) string {
	if lang == models.LanguageEnglish {
		return "Hello! I am your agricultural advisor, 'Kisha'. Please tell me your name and village/address."
	}
	return "नमस्ते! मैं आपकी कृषि सलाहकार, 'कीशा' हूँ। कृपया अपना नाम और गाँव/पता बताएं।"
}

func recapText(lang models.Language, name, lastProblem string) string {
	if lang == models.LanguageEnglish {
		return fmt.Sprintf("Welcome back, %s! Last time you faced an issue with '%s'. Has that been solved, or are you facing a new problem?", name, lastProblem)
	}
	return fmt.Sprintf("नमस्ते, %s! पिछली बार आपको '%s' की समस्या थी। क्या वह हल हो गई है, या आप किसी नई समस्या का सामना कर रहे हैं?", name, lastProblem)
}

func welcomeBackText(lang models.Language, name string) string {
	if lang == models.LanguageEnglish {
		return fmt.Sprintf("Welcome back, %s! Please tell me your main agricultural problem.", name)
	}
	return fmt.Sprintf("आपका फिर से स्वागत है, %s! कृपया अपनी मुख्य कृषि समस्या बताएं।", name)
}

func newUserText(lang models.Language, name string) string {
	if lang == models.LanguageEnglish {
		return fmt.Sprintf("Thank you %s! Now, please tell me your main agricultural problem.", name)
	}
	return fmt.Sprintf("धन्यवाद %s! अब कृपया अपनी मुख्य कृषि समस्या बताएं।", name)
}

func clarifyAddressText(lang models.Language) string {
	if lang == models.LanguageEnglish {
		return "Sorry, we could not find the GPS location for your address. Please provide a slightly clearer address."
	}
	return "क्षमा करें, हम आपके पते के लिए GPS स्थान नहीं ढूंढ पाए। कृपया अपना पता थोड़ा स्पष्ट करके दें।"
}

func internalErrorText(lang models.Language) string {
	if lang == models.LanguageEnglish {
		return "Internal error: Farmer record not found."
	}
	return "आंतरिक त्रुटि: किसान रिकॉर्ड नहीं मिला।"
}

func provideAddressText(lang models.Language) string {
	if lang == models.LanguageEnglish {
		return "Please provide your address so I can retrieve location-based data."
	}
	return "कृपया अपना पता सही से बताएं ताकि मैं आपके खेत के लिए सटीक जानकारी दे सकूं।"
}

func closingText(lang models.Language) string {
	if lang == models.LanguageEnglish {
		return "Happy to help you. Thank you for using Gram Vikas! See you soon."
	}
	return "आपकी मदद करके खुशी हुई। ग्राम विकास का उपयोग करने के लिए धन्यवाद! जल्द ही फिर मिलते हैं।"
}

func capabilityText(lang models.Language) string {
	if lang == models.LanguageEnglish {
		return "I can currently provide information on weather, soil, or market prices. Any other questions?"
	}
	return "मैं अभी केवल मौसम, मिट्टी या बाजार भाव की जानकारी दे सकता हूँ। कोई और सवाल?"
}

// compositeText assembles the multi-source advisory under fixed section
// headers, closing with the market price hint. Section order is fixed by this
// template, not by provider completion order.
func compositeText(lang models.Language, problem, weather, soil, vegetation string) string {
	if lang == models.LanguageEnglish {
		return fmt.Sprintf("**Problem:** %s\n**Weather Info:** %s\n**Soil Advice:** %s\n**Crop Health Report:** %s\n\nTo know market prices, type 'market price'.",
			problem, weather, soil, vegetation)
	}
	return fmt.Sprintf("**समस्या:** %s\n**मौसम की जानकारी:** %s\n**मिट्टी की सलाह:** %s\n**फसल स्वास्थ्य रिपोर्ट:** %s\n\nबाजार भाव जानने के लिए 'बाजार भाव' टाइप करें।",
		problem, weather, soil, vegetation)
}
