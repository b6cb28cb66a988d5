package page

import (
	"encoding/json"
	"fmt"
	"strings"

	"mcqsolver/internal/dom"
)

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func jsStrings(ss []string) string {
	b, _ := json.Marshal(ss)
	return string(b)
}

var stampScript = fmt.Sprintf(`(() => {
  const attr = %[1]s;
  let next = 0;
  document.querySelectorAll('[' + attr + ']').forEach(el => {
    const v = parseInt(el.getAttribute(attr), 10);
    if (!isNaN(v) && v >= next) next = v + 1;
  });
  let assigned = 0;
  document.querySelectorAll('*').forEach(el => {
    if (!el.hasAttribute(attr)) { el.setAttribute(attr, String(next++)); assigned++; }
  });
  return assigned;
})()`, jsString(dom.RefAttr))

func setImageScript(ref, src string) string {
	return fmt.Sprintf(`new Promise(resolve => {
  const el = document.querySelector(%s);
  if (!el) { resolve(false); return; }
  const done = () => resolve(true);
  el.addEventListener('load', done, {once: true});
  el.addEventListener('error', done, {once: true});
  setTimeout(done, 3000);
  el.removeAttribute('srcset');
  el.src = %s;
})`, jsString(dom.RefSelector(ref)), jsString(src))
}

func revealScript(ref string) string {
	return fmt.Sprintf(`(() => {
  const el = document.querySelector(%s);
  if (!el) return false;
  el.scrollIntoView({block: 'start', inline: 'nearest'});
  return true;
})()`, jsString(dom.RefSelector(ref)))
}

// geometry is the result of geometryScript.
type geometry struct {
	Found bool    `json:"found"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	W     float64 `json:"w"`
	H     float64 `json:"h"`
	Metrics
}

func geometryScript(ref string) string {
	return fmt.Sprintf(`(() => {
  const el = document.querySelector(%s);
  if (!el) return {found: false};
  const r = el.getBoundingClientRect();
  return {
    found: true,
    x: r.left + window.scrollX,
    y: r.top + window.scrollY,
    w: Math.max(r.width, el.scrollWidth),
    h: Math.max(r.height, el.scrollHeight),
    scrollWidth: el.scrollWidth,
    scrollHeight: el.scrollHeight,
    clientWidth: el.clientWidth,
    clientHeight: el.clientHeight
  };
})()`, jsString(dom.RefSelector(ref)))
}

func selectScript(options []string, index int) string {
	sels := make([]string, len(options))
	for i, ref := range options {
		sels[i] = dom.RefSelector(ref)
	}
	return fmt.Sprintf(`(() => {
  const els = %s.map(s => document.querySelector(s));
  const idx = %d;
  if (els.some(e => !e)) return 'missing';
  if (idx < 0 || idx >= els.length) return 'range';
  els.forEach(e => { e.checked = false; });
  const el = els[idx];
  el.checked = true;
  el.dispatchEvent(new Event('change', {bubbles: true}));
  el.click();
  return 'ok';
})()`, jsStrings(sels), index)
}

func flashScript(ref, color string, ms int64) string {
	return fmt.Sprintf(`(() => {
  const el = document.querySelector(%s);
  if (!el) return false;
  if (el.__mcqsPrev === undefined) el.__mcqsPrev = [el.style.outline, el.style.outlineOffset];
  clearTimeout(el.__mcqsTimer);
  el.style.outline = '3px solid ' + %s;
  el.style.outlineOffset = '2px';
  el.__mcqsTimer = setTimeout(() => {
    [el.style.outline, el.style.outlineOffset] = el.__mcqsPrev;
    delete el.__mcqsPrev;
  }, %d);
  return true;
})()`, jsString(dom.RefSelector(ref)), jsString(color), ms)
}

const notifyID = "mcqs-notification"

func notifyScript(msg, kind string) string {
	bg := map[string]string{
		KindSuccess:  SuccessColor,
		KindError:    FailureColor,
		KindProgress: "#2196F3",
	}[strings.ToLower(kind)]
	if bg == "" {
		bg = "#333333"
	}
	return fmt.Sprintf(`(() => {
  let box = document.getElementById(%s);
  if (!box) {
    box = document.createElement('div');
    box.id = %s;
    box.style.cssText = 'position:fixed;top:16px;right:16px;z-index:2147483647;padding:10px 14px;border-radius:6px;color:#fff;font:14px sans-serif;box-shadow:0 2px 8px rgba(0,0,0,.3);max-width:360px';
    document.body.appendChild(box);
  }
  box.textContent = %s;
  box.style.background = %s;
  box.style.display = 'block';
  clearTimeout(box.__mcqsTimer);
  if (%s !== 'progress') box.__mcqsTimer = setTimeout(() => { box.style.display = 'none'; }, 5000);
  return true;
})()`, jsString(notifyID), jsString(notifyID), jsString(msg), jsString(bg), jsString(strings.ToLower(kind)))
}
