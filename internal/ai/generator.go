package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Generator wraps the Gemini client for every text-generation step of
// the course pipeline: drafting, revision, image-need analysis and
// webpage generation.
type Generator struct {
	client     *genai.Client
	textModel  *genai.GenerativeModel
	imageModel *genai.GenerativeModel
}

func NewGenerator(ctx context.Context, apiKey, textModel, imageModel string) (*Generator, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(strings.TrimSpace(apiKey)))
	if err != nil {
		return nil, err
	}
	return &Generator{
		client:     client,
		textModel:  client.GenerativeModel(textModel),
		imageModel: client.GenerativeModel(imageModel),
	}, nil
}

const draftPrompt = `你是一位顶级的儿童英语课程设计师。
你的任务是根据固定的课程框架，围绕给定主题设计一堂生动有趣、内容翔实的英语课。
你需要严格遵循框架的结构，并确保内容适合儿童学习。
只输出结构清晰、内容完整的 Markdown 文档，不要有任何额外说明。

这是课程设计框架:
---
%s
---

请围绕 “%s” 这个主题，为我生成一份详细的课程草稿。`

func (g *Generator) GenerateDraft(ctx context.Context, framework, theme string) (string, error) {
	if theme == "" {
		return "", fmt.Errorf("theme is empty, cannot generate a draft")
	}
	return g.generateText(ctx, fmt.Sprintf(draftPrompt, framework, theme))
}

const revisePrompt = `你是一位善于听取反馈的课程设计师。
你的任务是根据用户提出的修改意见，对现有的课程草稿做出精确、合理的修改。
只输出完整的、修改后的 Markdown 文档。

这是当前的课程草稿:
---
%s
---

这是我的修改意见:
---
%s
---`

func (g *Generator) ReviseDraft(ctx context.Context, draft, feedback string) (string, error) {
	if draft == "" {
		return "", fmt.Errorf("no draft to revise")
	}
	return g.generateText(ctx, fmt.Sprintf(revisePrompt, draft, feedback))
}

const analyzePrompt = `你是一位儿童教育插画策划师。
阅读下面的课程内容，挑选最多 %d 个最值得配图的知识点，为每一个写一条英文的图片生成提示词。
提示词要求：卡通风格、色彩明亮、适合儿童、简单背景。
每行输出一条提示词，不要编号，不要任何其他文字。

课程内容:
---
%s
---`

// AnalyzeImageNeeds asks the model which illustrations the lesson
// needs and returns one image prompt per line, capped at max.
func (g *Generator) AnalyzeImageNeeds(ctx context.Context, content string, max int) ([]string, error) {
	text, err := g.generateText(ctx, fmt.Sprintf(analyzePrompt, max, content))
	if err != nil {
		return nil, err
	}
	var prompts []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*•"))
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		prompts = append(prompts, line)
		if len(prompts) == max {
			break
		}
	}
	if len(prompts) == 0 {
		return nil, fmt.Errorf("model returned no image prompts")
	}
	return prompts, nil
}

const webpageSystemPrompt = `你是一个专业的前端开发专家和儿童教育专家。
你的任务是将英语课程内容转换为一个精美的、适合儿童学习的 HTML 网页。

技术要求：
1. 生成一个完整的、可独立运行的 HTML5 文件
2. 使用内嵌 CSS，采用温暖、柔和的配色方案
3. 字体大小适合儿童阅读（正文至少 18px）
4. 响应式设计，同时适配手机和电脑
5. 为英文单词添加 <span class="pronounce" data-text="单词">单词</span> 标签并用 Web Speech API 实现点击发音
6. 使用语义化 HTML5 标签和卡片式布局

重要：只输出完整的 HTML 代码，不要有任何额外的解释或说明。`

// GenerateWebpage produces the standalone lesson page. When feedback
// and the current page are both present this is a revision pass and
// the model edits the existing HTML instead of starting over.
func (g *Generator) GenerateWebpage(ctx context.Context, content, currentHTML, feedback string, imagePaths []string) (string, error) {
	if content == "" {
		return "", fmt.Errorf("no finalized content to render")
	}
	var b strings.Builder
	b.WriteString(webpageSystemPrompt)
	b.WriteString("\n\n")
	if len(imagePaths) > 0 {
		b.WriteString("课程配图（用 <img> 标签引用这些相对路径，配上合适的说明文字）：\n")
		for _, p := range imagePaths {
			b.WriteString(p)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	if feedback != "" && currentHTML != "" {
		fmt.Fprintf(&b, `请根据以下要求修改网页：

用户的修改要求：
%s

当前的网页 HTML 代码：
---
%s
---

原始课程内容（供参考）：
---
%s
---

请基于当前的 HTML 进行精确修改，并输出完整的修改后的 HTML 代码。`, feedback, currentHTML, content)
	} else {
		fmt.Fprintf(&b, `请将以下英语课程内容转换为一个精美的 HTML 网页：

课程内容：
---
%s
---

请输出完整的 HTML 代码。`, content)
	}

	raw, err := g.generateText(ctx, b.String())
	if err != nil {
		return "", err
	}
	html := ExtractHTML(raw)
	if err := ValidatePage(html); err != nil {
		return "", fmt.Errorf("generated webpage failed validation: %w", err)
	}
	return html, nil
}

func (g *Generator) generateText(ctx context.Context, prompt string) (string, error) {
	resp, err := g.textModel.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("received an empty response from AI")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("unexpected response format from AI")
	}
	return b.String(), nil
}

func (g *Generator) Close() error {
	return g.client.Close()
}
