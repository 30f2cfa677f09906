package useragent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	chromeMacUA    = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	firefoxLinuxUA = "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0"
	safariIPhoneUA = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1"
	googlebotUA    = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
	curlUA         = "curl/8.4.0"
	thunderbirdUA  = "Mozilla/5.0 (X11; Linux x86_64; rv:115.0) Gecko/20100101 Thunderbird/115.5.0"
	gptbotUA       = "Mozilla/5.0 AppleWebKit/537.36 (KHTML, like Gecko); compatible; GPTBot/1.0; +https://openai.com/gptbot"
)

func TestClassify_DesktopBrowser(t *testing.T) {
	c := Classify(chromeMacUA)

	// Desktop has no device class, so type is the browser name.
	assert.Equal(t, "Chrome", c.Type)
	assert.Equal(t, "Apple", c.Vendor)
	assert.Equal(t, "Blink", c.Interface)
	assert.False(t, c.IsAutomated)
}

func TestClassify_FirefoxEngine(t *testing.T) {
	c := Classify(firefoxLinuxUA)

	assert.Equal(t, "Firefox", c.Type)
	assert.Equal(t, "Gecko", c.Interface)
	assert.False(t, c.IsAutomated)
}

func TestClassify_MobileDevice(t *testing.T) {
	c := Classify(safariIPhoneUA)

	assert.Equal(t, TypeMobile, c.Type)
	assert.Equal(t, "Apple", c.Vendor)
	assert.False(t, c.IsAutomated)
}

func TestClassify_Automated(t *testing.T) {
	tests := []struct {
		name string
		ua   string
	}{
		{"crawler", googlebotUA},
		{"cli client", curlUA},
		{"mail reader", thunderbirdUA},
		{"ai crawler", gptbotUA},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, Classify(tt.ua).IsAutomated)
		})
	}
}

func TestClassify_EmptyString(t *testing.T) {
	c := Classify("")

	assert.Empty(t, c.Model)
	assert.Empty(t, c.Vendor)
	assert.False(t, c.IsAutomated)
}

func TestClassify_Deterministic(t *testing.T) {
	assert.Equal(t, Classify(chromeMacUA), Classify(chromeMacUA))
}
