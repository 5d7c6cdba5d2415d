package export

import (
	"bytes"
	"encoding/xml"
	"text/template"
)

const xmlHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"

const (
	nsA = `xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"`
	nsR = `xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"`
	nsP = `xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"`

	relBase = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/"
	ctBase  = "application/vnd.openxmlformats-officedocument.presentationml."
)

func escapeXML(s string) (string, error) {
	var b bytes.Buffer
	if err := xml.EscapeText(&b, []byte(s)); err != nil {
		return "", err
	}
	return b.String(), nil
}

var templates = template.Must(template.New("pptx").Funcs(template.FuncMap{
	"esc": escapeXML,
	"add": func(a, b int) int { return a + b },
}).Parse(`
{{define "contentTypes"}}` + xmlHeader + `<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/ppt/presentation.xml" ContentType="` + ctBase + `presentation.main+xml"/>
<Override PartName="/ppt/presProps.xml" ContentType="` + ctBase + `presProps+xml"/>
<Override PartName="/ppt/viewProps.xml" ContentType="` + ctBase + `viewProps+xml"/>
<Override PartName="/ppt/tableStyles.xml" ContentType="` + ctBase + `tableStyles+xml"/>
<Override PartName="/ppt/slideMasters/slideMaster1.xml" ContentType="` + ctBase + `slideMaster+xml"/>
<Override PartName="/ppt/slideLayouts/slideLayout1.xml" ContentType="` + ctBase + `slideLayout+xml"/>
<Override PartName="/ppt/theme/theme1.xml" ContentType="application/vnd.openxmlformats-officedocument.theme+xml"/>
{{range $i, $s := .Slides}}<Override PartName="/ppt/slides/slide{{add $i 1}}.xml" ContentType="` + ctBase + `slide+xml"/>
{{end}}<Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>
<Override PartName="/docProps/app.xml" ContentType="application/vnd.openxmlformats-officedocument.extended-properties+xml"/>
</Types>{{end}}

{{define "rootRels"}}` + xmlHeader + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="` + relBase + `officeDocument" Target="ppt/presentation.xml"/>
<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>
<Relationship Id="rId3" Type="` + relBase + `extended-properties" Target="docProps/app.xml"/>
</Relationships>{{end}}

{{define "core"}}` + xmlHeader + `<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
<dc:title>{{esc .Title}}</dc:title>
<dc:creator>Segment Architect</dc:creator>
<dcterms:created xsi:type="dcterms:W3CDTF">{{.Created}}</dcterms:created>
<dcterms:modified xsi:type="dcterms:W3CDTF">{{.Created}}</dcterms:modified>
</cp:coreProperties>{{end}}

{{define "app"}}` + xmlHeader + `<Properties xmlns="http://schemas.openxmlformats.org/officeDocument/2006/extended-properties">
<Application>Segment Architect</Application>
<PresentationFormat>On-screen Show (4:3)</PresentationFormat>
<Slides>{{len .Slides}}</Slides>
</Properties>{{end}}

{{define "presentation"}}` + xmlHeader + `<p:presentation ` + nsA + ` ` + nsR + ` ` + nsP + ` saveSubsetFonts="1">
<p:sldMasterIdLst><p:sldMasterId id="2147483648" r:id="rId1"/></p:sldMasterIdLst>
<p:sldIdLst>{{range $i, $s := .Slides}}<p:sldId id="{{add $i 256}}" r:id="rId{{add $i 2}}"/>{{end}}</p:sldIdLst>
<p:sldSz cx="9144000" cy="6858000" type="screen4x3"/>
<p:notesSz cx="6858000" cy="9144000"/>
</p:presentation>{{end}}

{{define "presentationRels"}}{{$n := len .Slides}}` + xmlHeader + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="` + relBase + `slideMaster" Target="slideMasters/slideMaster1.xml"/>
{{range $i, $s := .Slides}}<Relationship Id="rId{{add $i 2}}" Type="` + relBase + `slide" Target="slides/slide{{add $i 1}}.xml"/>
{{end}}<Relationship Id="rId{{add $n 2}}" Type="` + relBase + `theme" Target="theme/theme1.xml"/>
<Relationship Id="rId{{add $n 3}}" Type="` + relBase + `presProps" Target="presProps.xml"/>
<Relationship Id="rId{{add $n 4}}" Type="` + relBase + `viewProps" Target="viewProps.xml"/>
<Relationship Id="rId{{add $n 5}}" Type="` + relBase + `tableStyles" Target="tableStyles.xml"/>
</Relationships>{{end}}

{{define "presProps"}}` + xmlHeader + `<p:presentationPr ` + nsA + ` ` + nsR + ` ` + nsP + `/>{{end}}

{{define "viewProps"}}` + xmlHeader + `<p:viewPr ` + nsA + ` ` + nsR + ` ` + nsP + `>
<p:normalViewPr><p:restoredLeft sz="15620"/><p:restoredTop sz="94660"/></p:normalViewPr>
<p:gridSpacing cx="76200" cy="76200"/>
</p:viewPr>{{end}}

{{define "tableStyles"}}` + xmlHeader + `<a:tblStyleLst ` + nsA + ` def="{5C22544A-7EE6-4342-B048-85BDC9FD1C3A}"/>{{end}}

{{define "groupHeader"}}<p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr>
<p:grpSpPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="0" cy="0"/><a:chOff x="0" y="0"/><a:chExt cx="0" cy="0"/></a:xfrm></p:grpSpPr>{{end}}

{{define "slideMaster"}}` + xmlHeader + `<p:sldMaster ` + nsA + ` ` + nsR + ` ` + nsP + `>
<p:cSld><p:bg><p:bgRef idx="1001"><a:schemeClr val="bg1"/></p:bgRef></p:bg>
<p:spTree>{{template "groupHeader"}}</p:spTree></p:cSld>
<p:clrMap bg1="lt1" tx1="dk1" bg2="lt2" tx2="dk2" accent1="accent1" accent2="accent2" accent3="accent3" accent4="accent4" accent5="accent5" accent6="accent6" hlink="hlink" folHlink="folHlink"/>
<p:sldLayoutIdLst><p:sldLayoutId id="2147483649" r:id="rId1"/></p:sldLayoutIdLst>
<p:txStyles>
<p:titleStyle><a:lvl1pPr algn="l"><a:defRPr sz="4400" kern="1200"><a:solidFill><a:schemeClr val="tx1"/></a:solidFill><a:latin typeface="+mj-lt"/></a:defRPr></a:lvl1pPr></p:titleStyle>
<p:bodyStyle><a:lvl1pPr><a:defRPr sz="1800" kern="1200"><a:solidFill><a:schemeClr val="tx1"/></a:solidFill><a:latin typeface="+mn-lt"/></a:defRPr></a:lvl1pPr></p:bodyStyle>
<p:otherStyle><a:lvl1pPr><a:defRPr sz="1800" kern="1200"><a:solidFill><a:schemeClr val="tx1"/></a:solidFill><a:latin typeface="+mn-lt"/></a:defRPr></a:lvl1pPr></p:otherStyle>
</p:txStyles>
</p:sldMaster>{{end}}

{{define "slideMasterRels"}}` + xmlHeader + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="` + relBase + `slideLayout" Target="../slideLayouts/slideLayout1.xml"/>
<Relationship Id="rId2" Type="` + relBase + `theme" Target="../theme/theme1.xml"/>
</Relationships>{{end}}

{{define "slideLayout"}}` + xmlHeader + `<p:sldLayout ` + nsA + ` ` + nsR + ` ` + nsP + ` type="blank" preserve="1">
<p:cSld name="Blank"><p:spTree>{{template "groupHeader"}}</p:spTree></p:cSld>
<p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr>
</p:sldLayout>{{end}}

{{define "slideLayoutRels"}}` + xmlHeader + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="` + relBase + `slideMaster" Target="../slideMasters/slideMaster1.xml"/>
</Relationships>{{end}}

{{define "slideRels"}}` + xmlHeader + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="` + relBase + `slideLayout" Target="../slideLayouts/slideLayout1.xml"/>
</Relationships>{{end}}

{{define "slide"}}` + xmlHeader + `<p:sld ` + nsA + ` ` + nsR + ` ` + nsP + `>
<p:cSld><p:spTree>{{template "groupHeader"}}
{{range .Shapes}}{{template "shape" .}}
{{end}}</p:spTree></p:cSld>
<p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr>
</p:sld>{{end}}

{{define "shape"}}<p:sp><p:nvSpPr><p:cNvPr id="{{.ID}}" name="{{esc .Name}}"/><p:cNvSpPr txBox="1"/><p:nvPr/></p:nvSpPr>
<p:spPr><a:xfrm><a:off x="{{.X}}" y="{{.Y}}"/><a:ext cx="{{.W}}" cy="{{.H}}"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom>{{if .Fill}}<a:solidFill><a:srgbClr val="{{.Fill}}"/></a:solidFill>{{else}}<a:noFill/>{{end}}</p:spPr>
<p:txBody><a:bodyPr wrap="square" lIns="91440" tIns="45720" rIns="91440" bIns="45720" rtlCol="0" anchor="{{.Anchor}}">{{if .Autofit}}<a:normAutofit/>{{else}}<a:noAutofit/>{{end}}</a:bodyPr><a:lstStyle/>
{{range .Paragraphs}}<a:p><a:pPr algn="{{$.Align}}"/><a:r><a:rPr lang="en-US" sz="{{$.Size}}"{{if $.Bold}} b="1"{{end}} dirty="0"><a:solidFill><a:srgbClr val="{{$.Color}}"/></a:solidFill>{{if $.Font}}<a:latin typeface="{{esc $.Font}}"/><a:cs typeface="{{esc $.Font}}"/>{{end}}</a:rPr><a:t>{{esc .}}</a:t></a:r></a:p>
{{end}}</p:txBody></p:sp>{{end}}

{{define "theme"}}` + xmlHeader + themeXML + `{{end}}
`))

const themeXML = `<a:theme ` + nsA + ` name="Segment Architect">
<a:themeElements>
<a:clrScheme name="Office">
<a:dk1><a:sysClr val="windowText" lastClr="000000"/></a:dk1>
<a:lt1><a:sysClr val="window" lastClr="FFFFFF"/></a:lt1>
<a:dk2><a:srgbClr val="1F2937"/></a:dk2>
<a:lt2><a:srgbClr val="F3F4F6"/></a:lt2>
<a:accent1><a:srgbClr val="2563EB"/></a:accent1>
<a:accent2><a:srgbClr val="EA580C"/></a:accent2>
<a:accent3><a:srgbClr val="059669"/></a:accent3>
<a:accent4><a:srgbClr val="7C3AED"/></a:accent4>
<a:accent5><a:srgbClr val="DB2777"/></a:accent5>
<a:accent6><a:srgbClr val="CA8A04"/></a:accent6>
<a:hlink><a:srgbClr val="0000EE"/></a:hlink>
<a:folHlink><a:srgbClr val="551A8B"/></a:folHlink>
</a:clrScheme>
<a:fontScheme name="Office">
<a:majorFont><a:latin typeface="Calibri Light"/><a:ea typeface=""/><a:cs typeface=""/></a:majorFont>
<a:minorFont><a:latin typeface="Calibri"/><a:ea typeface=""/><a:cs typeface=""/></a:minorFont>
</a:fontScheme>
<a:fmtScheme name="Office">
<a:fillStyleLst>
<a:solidFill><a:schemeClr val="phClr"/></a:solidFill>
<a:solidFill><a:schemeClr val="phClr"><a:tint val="50000"/></a:schemeClr></a:solidFill>
<a:solidFill><a:schemeClr val="phClr"><a:shade val="80000"/></a:schemeClr></a:solidFill>
</a:fillStyleLst>
<a:lnStyleLst>
<a:ln w="6350"><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:ln>
<a:ln w="12700"><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:ln>
<a:ln w="19050"><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:ln>
</a:lnStyleLst>
<a:effectStyleLst>
<a:effectStyle><a:effectLst/></a:effectStyle>
<a:effectStyle><a:effectLst/></a:effectStyle>
<a:effectStyle><a:effectLst/></a:effectStyle>
</a:effectStyleLst>
<a:bgFillStyleLst>
<a:solidFill><a:schemeClr val="phClr"/></a:solidFill>
<a:solidFill><a:schemeClr val="phClr"><a:tint val="95000"/></a:schemeClr></a:solidFill>
<a:solidFill><a:schemeClr val="phClr"><a:shade val="90000"/></a:schemeClr></a:solidFill>
</a:bgFillStyleLst>
</a:fmtScheme>
</a:themeElements>
</a:theme>`
