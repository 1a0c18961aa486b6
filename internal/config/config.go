// Package config holds the tool configuration: paths, the generation site and
// its selector chains, wait budgets, and the card layout parameters.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPromptPrefix fixes art style, aspect ratio and the script used for
// any lettering in the generated image.
const DefaultPromptPrefix = "写实融合国风插画风格，画面精致细腻，色彩典雅。图片长宽比注意只能是1比1。生成字时请使用标准正楷字。"

// Config is the full tool configuration.
type Config struct {
	Paths     Paths     `yaml:"paths"`
	Site      Site      `yaml:"site"`
	Browser   Browser   `yaml:"browser"`
	Selectors Selectors `yaml:"selectors"`
	Timeouts  Timeouts  `yaml:"timeouts"`
	Layout    Layout    `yaml:"layout"`
	Fonts     Fonts     `yaml:"fonts"`
	// Palette is matched in order against a card's color theme.
	Palette      []PaletteEntry    `yaml:"palette"`
	DefaultColor string            `yaml:"default_color"`
	Glyphs       map[string]string `yaml:"glyphs"`
	Gemini       Gemini            `yaml:"gemini"`
	OpenAI       OpenAI            `yaml:"openai"`
	// Delay between cards in a batch run.
	Delay time.Duration `yaml:"delay"`
}

type Paths struct {
	Assets     string `yaml:"assets"`
	Output     string `yaml:"output"`
	Profile    string `yaml:"profile"`
	CookieFile string `yaml:"cookie_file"`
	// Scratch is where downloaded images are staged. Empty means os.TempDir().
	Scratch string `yaml:"scratch"`
}

type Site struct {
	URL string `yaml:"url"`
	// ImageHost prefixes root-relative image URLs.
	ImageHost    string `yaml:"image_host"`
	PromptPrefix string `yaml:"prompt_prefix"`
}

type Browser struct {
	Headless bool `yaml:"headless"`
	// RemoteURL attaches to an already running browser (DevTools websocket
	// or http endpoint) instead of launching one.
	RemoteURL string `yaml:"remote_url"`
	ExecPath  string `yaml:"exec_path"`
	// TypeDelay is the pause between typed characters.
	TypeDelay time.Duration `yaml:"type_delay"`
}

// Strategy is one named selector lookup with its own wait budget.
type Strategy struct {
	Name     string        `yaml:"name"`
	Selector string        `yaml:"selector"`
	Timeout  time.Duration `yaml:"timeout"`
}

type Selectors struct {
	SignIn         []Strategy `yaml:"sign_in"`
	PromptInput    []Strategy `yaml:"prompt_input"`
	Indicator      []Strategy `yaml:"indicator"`
	ImageContainer []Strategy `yaml:"image_container"`
}

type Timeouts struct {
	Navigation   time.Duration `yaml:"navigation"`
	LoadSettle   time.Duration `yaml:"load_settle"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxGenerate  time.Duration `yaml:"max_generate"`
	ImageSettle  time.Duration `yaml:"image_settle"`
	Download     time.Duration `yaml:"download"`
}

// Layout holds the compositing parameters, in pixels unless noted.
type Layout struct {
	TitleTop      int     `yaml:"title_top"`
	CaptionBottom int     `yaml:"caption_bottom"`
	ArtGap        int     `yaml:"art_gap"`
	MarginShrink  int     `yaml:"margin_shrink"`
	SideReserve   int     `yaml:"side_reserve"`
	FinalScale    float64 `yaml:"final_scale"`
	CropEachSide  int     `yaml:"crop_each_side"`
	BlurSigma     float64 `yaml:"blur_sigma"`
	FeatherHeight int     `yaml:"feather_height"`
	NameSize      float64 `yaml:"name_size"`
	NameMinSize   float64 `yaml:"name_min_size"`
	CaptionSize   float64 `yaml:"caption_size"`
	CaptionMargin int     `yaml:"caption_margin"`
	LineSpacing   int     `yaml:"line_spacing"`
	GlyphGap      int     `yaml:"glyph_gap"`
	NameColor     string  `yaml:"name_color"`
	CaptionColor  string  `yaml:"caption_color"`
}

// Fonts are prioritized lists of font files. A bare file name is searched in
// Dirs; the name "goregular" selects the embedded Go font.
type Fonts struct {
	Text  []string `yaml:"text"`
	Glyph []string `yaml:"glyph"`
	Dirs  []string `yaml:"dirs"`
}

type PaletteEntry struct {
	Keywords []string `yaml:"keywords"`
	Color    string   `yaml:"color"`
}

type Gemini struct {
	Model string `yaml:"model"`
}

type OpenAI struct {
	Model   string `yaml:"model"`
	Size    string `yaml:"size"`
	BaseURL string `yaml:"base_url"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Paths: Paths{
			Assets:     "Base_IMG",
			Output:     "Generated_Cards",
			Profile:    "browser_data",
			CookieFile: "cookies.json",
		},
		Site: Site{
			URL:          "https://copilot.microsoft.com",
			ImageHost:    "https://bing.com",
			PromptPrefix: DefaultPromptPrefix,
		},
		Browser: Browser{
			TypeDelay: 50 * time.Millisecond,
		},
		Selectors: DefaultSelectors(),
		Timeouts: Timeouts{
			Navigation:   60 * time.Second,
			LoadSettle:   3 * time.Second,
			PollInterval: 2 * time.Second,
			MaxGenerate:  120 * time.Second,
			ImageSettle:  3 * time.Second,
			Download:     30 * time.Second,
		},
		Layout: Layout{
			TitleTop:      50,
			CaptionBottom: 20,
			ArtGap:        20,
			MarginShrink:  40,
			SideReserve:   6,
			FinalScale:    0.9,
			CropEachSide:  5,
			BlurSigma:     0.8,
			FeatherHeight: 20,
			NameSize:      44,
			NameMinSize:   24,
			CaptionSize:   28,
			CaptionMargin: 30,
			LineSpacing:   8,
			GlyphGap:      10,
			NameColor:     "#FFFFFF",
			CaptionColor:  "#FFFFFF",
		},
		Fonts: Fonts{
			Text:  []string{"simhei.ttf", "arial.ttf", "goregular"},
			Glyph: []string{"seguisym.ttf", "DejaVuSans.ttf", "simhei.ttf", "goregular"},
			Dirs:  []string{"fonts", "/usr/share/fonts/truetype", "/usr/share/fonts/TTF", "/Library/Fonts", `C:\Windows\Fonts`},
		},
		Palette:      DefaultPalette(),
		DefaultColor: "#FFFFFF",
		Glyphs:       DefaultGlyphs(),
		Gemini: Gemini{
			Model: "gemini-2.5-flash-image",
		},
		OpenAI: OpenAI{
			Model:   "gpt-image-1",
			Size:    "1024x1024",
			BaseURL: "https://api.openai.com/v1",
		},
		Delay: 5 * time.Second,
	}
}

// DefaultSelectors returns the selector chains for the generation site.
func DefaultSelectors() Selectors {
	return Selectors{
		SignIn: []Strategy{
			{Name: "sign-in-button", Selector: `button[data-testid="sign-in-button"]`, Timeout: 3 * time.Second},
			{Name: "login-link", Selector: `a[href*="login"]`, Timeout: time.Second},
		},
		PromptInput: []Strategy{
			{Name: "composer", Selector: `textarea[data-testid="composer-input"]`, Timeout: 30 * time.Second},
			{Name: "placeholder-zh", Selector: `textarea[placeholder*="消息"]`, Timeout: 5 * time.Second},
			{Name: "placeholder-en", Selector: `textarea[placeholder*="Message"]`, Timeout: 5 * time.Second},
			{Name: "user-input", Selector: `textarea#userInput`, Timeout: 5 * time.Second},
			{Name: "textbox-role", Selector: `textarea[role="textbox"]`, Timeout: 5 * time.Second},
		},
		Indicator: []Strategy{
			{Name: "progress-dot", Selector: `.size-3\.5.rounded.bg-salmon-550`, Timeout: 10 * time.Second},
		},
		ImageContainer: []Strategy{
			{Name: "result-card", Selector: `div.w-full.max-w-96.rounded-2xl img`, Timeout: 10 * time.Second},
			{Name: "alt-zh", Selector: `img[alt*="生成"]`, Timeout: 10 * time.Second},
			{Name: "alt-en", Selector: `img[alt*="Generated"]`, Timeout: 10 * time.Second},
			{Name: "rounded", Selector: `div.rounded-2xl img`, Timeout: 10 * time.Second},
			{Name: "aspect-auto", Selector: `div[class*="aspect-auto"] img`, Timeout: 10 * time.Second},
		},
	}
}

// DefaultPalette is the deep-tone palette.
func DefaultPalette() []PaletteEntry {
	return []PaletteEntry{
		{Keywords: []string{"红", "赤", "朱", "丹", "red", "crimson"}, Color: "#8B1A1A"},
		{Keywords: []string{"金", "黄", "gold", "yellow"}, Color: "#B8860B"},
		{Keywords: []string{"绿", "翠", "green", "jade"}, Color: "#1E5B3A"},
		{Keywords: []string{"蓝", "青", "靛", "blue", "azure"}, Color: "#1F3A6B"},
		{Keywords: []string{"紫", "purple", "violet"}, Color: "#4B2366"},
		{Keywords: []string{"黑", "玄", "墨", "black", "ink"}, Color: "#1A1A1A"},
		{Keywords: []string{"褐", "棕", "铜", "brown", "bronze"}, Color: "#6B4226"},
		{Keywords: []string{"白", "银", "素", "white", "silver"}, Color: "#C0C0C0"},
	}
}

// DefaultGlyphs maps card groups to their marker glyph.
func DefaultGlyphs() map[string]string {
	return map[string]string{
		"国家卡": "🏰",
		"思想卡": "🧠",
		"变法卡": "⚖️",
		"连锁卡": "🔗",
		"军事卡": "⚔️",
		"经济卡": "💰",
		"道具卡": "🎁",
		"锦囊牌": "📜",
		"祭祀卡": "🙏",
	}
}

// Load reads a YAML config file over the defaults. Fields the file does not
// set keep their default; lists given in the file replace the default list
// and glyph entries are merged. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		slog.Debug("Loaded config file", "path", path)
	}
	cfg.applyEnv()
	cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	for env, dst := range map[string]*string{
		"CARDFORGE_SITE_URL":     &c.Site.URL,
		"CARDFORGE_ASSETS_DIR":   &c.Paths.Assets,
		"CARDFORGE_OUTPUT_DIR":   &c.Paths.Output,
		"CARDFORGE_PROFILE_DIR":  &c.Paths.Profile,
		"CARDFORGE_REMOTE_URL":   &c.Browser.RemoteURL,
		"CARDFORGE_CHROME_PATH":  &c.Browser.ExecPath,
		"CARDFORGE_GEMINI_MODEL": &c.Gemini.Model,
		"CARDFORGE_OPENAI_MODEL": &c.OpenAI.Model,
		"OPENAI_BASE_URL":        &c.OpenAI.BaseURL,
	} {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
}

func (c *Config) withDefaults() {
	fillTimeouts(c.Selectors.SignIn, time.Second)
	fillTimeouts(c.Selectors.PromptInput, 5*time.Second)
	fillTimeouts(c.Selectors.Indicator, 10*time.Second)
	fillTimeouts(c.Selectors.ImageContainer, 10*time.Second)
	if c.Glyphs == nil {
		c.Glyphs = map[string]string{}
	}
}

func fillTimeouts(chain []Strategy, fallback time.Duration) {
	for i := range chain {
		if chain[i].Timeout <= 0 {
			chain[i].Timeout = fallback
		}
		if chain[i].Name == "" {
			chain[i].Name = chain[i].Selector
		}
	}
}

// Validate reports every unusable setting.
func (c *Config) Validate() error {
	var errs []error
	if c.Site.URL == "" {
		errs = append(errs, errors.New("site.url is required"))
	}
	if len(c.Selectors.PromptInput) == 0 {
		errs = append(errs, errors.New("selectors.prompt_input must list at least one selector"))
	}
	if len(c.Selectors.ImageContainer) == 0 {
		errs = append(errs, errors.New("selectors.image_container must list at least one selector"))
	}
	if c.Timeouts.PollInterval <= 0 {
		errs = append(errs, errors.New("timeouts.poll_interval must be positive"))
	}
	if c.Layout.FinalScale <= 0 || c.Layout.FinalScale > 1 {
		errs = append(errs, fmt.Errorf("layout.final_scale must be in (0, 1], got %v", c.Layout.FinalScale))
	}
	if c.Layout.FeatherHeight < 0 || c.Layout.CropEachSide < 0 || c.Layout.MarginShrink < 0 {
		errs = append(errs, errors.New("layout sizes must not be negative"))
	}
	if c.Layout.NameSize <= 0 || c.Layout.CaptionSize <= 0 {
		errs = append(errs, errors.New("layout font sizes must be positive"))
	}
	for _, s := range []string{c.Layout.NameColor, c.Layout.CaptionColor, c.DefaultColor} {
		if _, err := ParseColor(s); err != nil {
			errs = append(errs, err)
		}
	}
	for _, p := range c.Palette {
		if _, err := ParseColor(p.Color); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
