package render

const tagsHTMLTemplate = `<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Price tags</title>
  <style>
    @page { size: {{.Format.CSSSize}}; margin: {{.Margin}}; }
    * { box-sizing: border-box; }
    body { margin: 0; font-family: "{{.Font}}", Arial, sans-serif; }
    .page { display: grid; grid-template-columns: repeat({{.Grid.Columns}}, {{px .Cell.Width}}); grid-auto-rows: {{px .Cell.Height}}; }
    .tag { position: relative; overflow: hidden; width: {{px .Cell.Width}}; height: {{px .Cell.Height}}; padding: 12px; text-align: center; border: 1px dashed; }
    .name { margin: 0 auto; overflow: hidden; overflow-wrap: anywhere; line-height: 1.2; }
    .price { font-size: 36px; font-weight: 700; }
    .discount { font-size: 20px; font-weight: 700; }
    .caption { font-size: 11px; }
    .tiers { font-size: 12px; }
    .ribbon { position: absolute; top: 10px; right: -30px; width: 110px; transform: rotate(45deg); font-size: 11px; font-weight: 700; color: #ffffff; }
  </style>
</head>
<body>
{{- range .Pages}}
  <section class="page" data-page="{{.Index}}"{{if not .Last}} style="page-break-after: always"{{end}}>
  {{- range .Tags}}
    <div class="tag" data-id="{{.ID}}" data-design="{{.DesignType}}" style="{{if .Solid}}background: {{.Start}};{{else}}background: linear-gradient(135deg, {{.Start}}, {{.End}});{{end}} color: {{.TextColor}}; border-color: {{.GuideColor}};">
      {{- if .Ribbon}}
      <div class="ribbon" style="background: {{.RibbonColor}};">{{.Ribbon}}</div>
      {{- end}}
      <div class="name" style="font-size: {{px .Font.Size}}; width: {{px .NameBox.Width}}; height: {{px .NameBox.Height}};">{{.Name}}</div>
      <div class="price">{{.Price}}</div>
      {{- if .HasDiscount}}
      <div class="discount">{{.DiscountPrice}}</div>
      {{- range .DiscountLines}}
      <div class="caption">{{.}}</div>
      {{- end}}
      {{- end}}
      {{- if .Tiers}}
      <div class="tiers">
        {{- range .Tiers}}
        <span>{{.Label}}: {{.Price}}</span>
        {{- end}}
      </div>
      {{- end}}
    </div>
  {{- end}}
  </section>
{{- end}}
</body>
</html>
`
